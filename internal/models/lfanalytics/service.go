package lfanalytics

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service porte tout l'accès aux données analytics : résolution des
// visiteurs, enregistrement des vues, mise à jour du temps passé et
// agrégations. Les statistiques sont recalculées entièrement à chaque
// appel, pas de cache ni de maintenance incrémentale : le volume d'un
// site personnel ne justifie rien de plus.
type Service struct {
	db    *gorm.DB
	redis *redis.Client
	geo   GeoResolver
	ua    *UAClassifier
	cron  *cron.Cron
}

// NewService construit le service. redisClient peut être nil (compteurs
// temps réel désactivés). retentionDays à 0 désactive la purge : les
// données ne sont jamais supprimées en fonctionnement normal.
func NewService(db *gorm.DB, redisClient *redis.Client, geo GeoResolver, retentionDays int) *Service {
	s := &Service{
		db:    db,
		redis: redisClient,
		geo:   geo,
		ua:    NewUAClassifier(),
	}
	if retentionDays > 0 {
		s.cron = setupCleanupCron(db, retentionDays)
	}
	return s
}

// ResolveVisitor retrouve ou crée le visiteur correspondant à l'IP source.
// Visite répétée : compteur +1, last_visit rafraîchi, champs UA/géo écrasés
// par les valeurs dérivées de la requête courante.
func (s *Service) ResolveVisitor(ip, userAgent, referrer, language string) (*Visitor, error) {
	info := s.ua.Classify(userAgent)
	geo := s.geo.Resolve(ip)
	now := time.Now()

	var visitor Visitor
	result := s.db.Where("ip_address = ?", ip).First(&visitor)

	if result.Error == gorm.ErrRecordNotFound {
		visitor = Visitor{
			IPAddress:  ip,
			UserAgent:  userAgent,
			Referrer:   referrer,
			Language:   language,
			Country:    geo.Country,
			City:       geo.City,
			Region:     geo.Region,
			Latitude:   geo.Latitude,
			Longitude:  geo.Longitude,
			Browser:    info.Browser,
			Os:         info.Os,
			Device:     info.Device,
			IsUnique:   true,
			VisitCount: 1,
			FirstVisit: now,
			LastVisit:  now,
		}
		if err := s.db.Create(&visitor).Error; err != nil {
			return nil, fmt.Errorf("error creating visitor: %w", err)
		}
		return &visitor, nil
	}

	if result.Error != nil {
		return nil, fmt.Errorf("error looking up visitor: %w", result.Error)
	}

	err := s.db.Model(&visitor).Updates(map[string]interface{}{
		"user_agent":  userAgent,
		"referrer":    referrer,
		"language":    language,
		"country":     geo.Country,
		"city":        geo.City,
		"region":      geo.Region,
		"latitude":    geo.Latitude,
		"longitude":   geo.Longitude,
		"browser":     info.Browser,
		"os":          info.Os,
		"device":      info.Device,
		"last_visit":  now,
		"visit_count": gorm.Expr("visit_count + 1"),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("error updating visitor: %w", err)
	}

	visitor.VisitCount++
	visitor.LastVisit = now
	return &visitor, nil
}

// IsEntryPage approxime une page d'entrée : pas de referrer, ou referrer
// d'un autre hôte. Heuristique sans session, pas une vraie frontière.
func IsEntryPage(referrer, host string) bool {
	if referrer == "" {
		return true
	}
	ref, err := url.Parse(referrer)
	if err != nil {
		return true
	}
	return !strings.EqualFold(ref.Hostname(), stripPort(host))
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	// Pas de port : retirer les crochets d'un littéral IPv6
	return strings.Trim(host, "[]")
}

// RecordPageVisit enregistre une vue de page. La vue la plus récente d'un
// visiteur porte exit_page=true (sortie présumée) ; l'insertion d'une
// nouvelle vue retire les drapeaux exit/bounce de la précédente.
func (s *Service) RecordPageVisit(visitorID uint, path, title, referrer, host string) (*PageVisit, error) {
	if title == "" {
		title = "Unknown Page"
	}

	entry := IsEntryPage(referrer, host)

	visit := PageVisit{
		VisitorID: visitorID,
		Path:      path,
		Title:     title,
		Referrer:  referrer,
		EntryPage: entry,
		ExitPage:  true,
		CreatedAt: time.Now(),
	}

	// Les deux lignes touchées appartiennent à la même table : une seule
	// transaction pour maintenir les drapeaux cohérents.
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var previous PageVisit
		result := tx.Where("visitor_id = ?", visitorID).
			Order("created_at DESC").
			First(&previous)

		if result.Error == gorm.ErrRecordNotFound {
			// Première vue de ce visiteur : bounce tant qu'il ne revoit rien
			visit.Bounced = entry
		} else if result.Error != nil {
			return result.Error
		} else {
			if err := tx.Model(&previous).Updates(map[string]interface{}{
				"exit_page": false,
				"bounced":   false,
			}).Error; err != nil {
				return err
			}
		}

		return tx.Create(&visit).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error recording page visit: %w", err)
	}

	s.bumpRealtimeCounters(visitorID)

	return &visit, nil
}

// bumpRealtimeCounters alimente les compteurs Redis du jour, TTL 31 jours
func (s *Service) bumpRealtimeCounters(visitorID uint) {
	if s.redis == nil {
		return
	}

	ctx := context.Background()
	day := time.Now().Format("2006-01-02")

	cacheKey := fmt.Sprintf("analytics:daily:%s", day)
	s.redis.HIncrBy(ctx, cacheKey, "page_views", 1)
	s.redis.Expire(ctx, cacheKey, 31*24*time.Hour)

	visitorKey := fmt.Sprintf("analytics:visitors:%s", day)
	s.redis.SAdd(ctx, visitorKey, visitorID)
	s.redis.Expire(ctx, visitorKey, 31*24*time.Hour)
}

// UpdateTimeSpent patche le temps passé sur la vue la plus récente qui
// matche (path, visiteur si connu). Un second beacon pour la même vue
// écrase la valeur précédente, il ne cumule pas : comportement attendu en
// l'absence de notion de session. Retourne gorm.ErrRecordNotFound si
// aucune vue ne matche.
func (s *Service) UpdateTimeSpent(path string, visitorID uint, seconds int) error {
	query := s.db.Where("path = ?", path)
	if visitorID != 0 {
		query = query.Where("visitor_id = ?", visitorID)
	}

	var visit PageVisit
	if err := query.Order("created_at DESC").First(&visit).Error; err != nil {
		return err
	}

	return s.db.Model(&visit).Update("time_spent", seconds).Error
}

// VisitorStats est la synthèse retournée par GET /api/visitors
type VisitorStats struct {
	TotalVisitors     int64          `json:"totalVisitors"`
	UniqueVisitors    int64          `json:"uniqueVisitors"`
	TodayVisitors     int64          `json:"todayVisitors"`
	LastWeekVisitors  int64          `json:"lastWeekVisitors"`
	VisitorsByCountry []CountryCount `json:"visitorsByCountry"`
	VisitorsByDevice  []DeviceCount  `json:"visitorsByDevice"`
	VisitorsByBrowser []BrowserCount `json:"visitorsByBrowser"`
	VisitorsByOs      []OsCount      `json:"visitorsByOs"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type DeviceCount struct {
	Device string `json:"device"`
	Count  int64  `json:"count"`
}

type BrowserCount struct {
	Browser string `json:"browser"`
	Count   int64  `json:"count"`
}

type OsCount struct {
	Os    string `json:"os"`
	Count int64  `json:"count"`
}

// GetVisitorStats recalcule toutes les statistiques visiteurs.
func (s *Service) GetVisitorStats() (*VisitorStats, error) {
	stats := &VisitorStats{}

	if err := s.db.Model(&Visitor{}).Count(&stats.TotalVisitors).Error; err != nil {
		return nil, fmt.Errorf("error counting visitors: %w", err)
	}

	err := s.db.Model(&Visitor{}).
		Where("is_unique = ?", true).
		Count(&stats.UniqueVisitors).Error
	if err != nil {
		return nil, fmt.Errorf("error counting unique visitors: %w", err)
	}

	// Frontière calendaire locale pour "aujourd'hui"
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err = s.db.Model(&Visitor{}).
		Where("last_visit >= ?", today).
		Count(&stats.TodayVisitors).Error
	if err != nil {
		return nil, fmt.Errorf("error counting today visitors: %w", err)
	}

	err = s.db.Model(&Visitor{}).
		Where("last_visit >= ?", now.AddDate(0, 0, -7)).
		Count(&stats.LastWeekVisitors).Error
	if err != nil {
		return nil, fmt.Errorf("error counting last week visitors: %w", err)
	}

	err = s.db.Model(&Visitor{}).
		Select("country, COUNT(*) as count").
		Group("country").
		Order("count DESC").
		Limit(10).
		Scan(&stats.VisitorsByCountry).Error
	if err != nil {
		return nil, fmt.Errorf("error grouping visitors by country: %w", err)
	}
	for i := range stats.VisitorsByCountry {
		if stats.VisitorsByCountry[i].Country == "" {
			stats.VisitorsByCountry[i].Country = "Unknown"
		}
	}

	err = s.db.Model(&Visitor{}).
		Select("device, COUNT(*) as count").
		Group("device").
		Order("count DESC").
		Limit(10).
		Scan(&stats.VisitorsByDevice).Error
	if err != nil {
		return nil, fmt.Errorf("error grouping visitors by device: %w", err)
	}
	for i := range stats.VisitorsByDevice {
		if stats.VisitorsByDevice[i].Device == "" {
			stats.VisitorsByDevice[i].Device = "Unknown"
		}
	}

	err = s.db.Model(&Visitor{}).
		Select("browser, COUNT(*) as count").
		Group("browser").
		Order("count DESC").
		Limit(10).
		Scan(&stats.VisitorsByBrowser).Error
	if err != nil {
		return nil, fmt.Errorf("error grouping visitors by browser: %w", err)
	}
	for i := range stats.VisitorsByBrowser {
		if stats.VisitorsByBrowser[i].Browser == "" {
			stats.VisitorsByBrowser[i].Browser = "Unknown"
		}
	}

	err = s.db.Model(&Visitor{}).
		Select("os, COUNT(*) as count").
		Group("os").
		Order("count DESC").
		Limit(10).
		Scan(&stats.VisitorsByOs).Error
	if err != nil {
		return nil, fmt.Errorf("error grouping visitors by os: %w", err)
	}
	for i := range stats.VisitorsByOs {
		if stats.VisitorsByOs[i].Os == "" {
			stats.VisitorsByOs[i].Os = "Unknown"
		}
	}

	return stats, nil
}

// PageVisitStats est la synthèse retournée par GET /api/pagevisits
type PageVisitStats struct {
	TotalPageVisits   int64         `json:"totalPageVisits"`
	UniquePageVisits  int64         `json:"uniquePageVisits"`
	MostVisitedPages  []PathCount   `json:"mostVisitedPages"`
	AverageTimeOnPage []PathAvgTime `json:"averageTimeOnPage"`
	EntryPages        []PathCount   `json:"entryPages"`
	ExitPages         []PathCount   `json:"exitPages"`
	BounceRate        float64       `json:"bounceRate"`
}

type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

type PathAvgTime struct {
	Path    string  `json:"path"`
	AvgTime float64 `json:"avgTime"`
}

// GetPageVisitStats recalcule toutes les statistiques de vues de pages.
func (s *Service) GetPageVisitStats() (*PageVisitStats, error) {
	stats := &PageVisitStats{}

	if err := s.db.Model(&PageVisit{}).Count(&stats.TotalPageVisits).Error; err != nil {
		return nil, fmt.Errorf("error counting page visits: %w", err)
	}

	err := s.db.Model(&PageVisit{}).
		Distinct("path").
		Count(&stats.UniquePageVisits).Error
	if err != nil {
		return nil, fmt.Errorf("error counting distinct paths: %w", err)
	}

	err = s.db.Model(&PageVisit{}).
		Select("path, COUNT(*) as count").
		Group("path").
		Order("count DESC").
		Limit(10).
		Scan(&stats.MostVisitedPages).Error
	if err != nil {
		return nil, fmt.Errorf("error getting most visited pages: %w", err)
	}

	err = s.db.Model(&PageVisit{}).
		Select("path, AVG(time_spent) as avg_time").
		Where("time_spent IS NOT NULL").
		Group("path").
		Order("avg_time DESC").
		Limit(10).
		Scan(&stats.AverageTimeOnPage).Error
	if err != nil {
		return nil, fmt.Errorf("error getting average time on page: %w", err)
	}

	err = s.db.Model(&PageVisit{}).
		Select("path, COUNT(*) as count").
		Where("entry_page = ?", true).
		Group("path").
		Order("count DESC").
		Limit(10).
		Scan(&stats.EntryPages).Error
	if err != nil {
		return nil, fmt.Errorf("error getting entry pages: %w", err)
	}

	err = s.db.Model(&PageVisit{}).
		Select("path, COUNT(*) as count").
		Where("exit_page = ?", true).
		Group("path").
		Order("count DESC").
		Limit(10).
		Scan(&stats.ExitPages).Error
	if err != nil {
		return nil, fmt.Errorf("error getting exit pages: %w", err)
	}

	var bounced int64
	err = s.db.Model(&PageVisit{}).
		Where("bounced = ?", true).
		Count(&bounced).Error
	if err != nil {
		return nil, fmt.Errorf("error counting bounced visits: %w", err)
	}

	var distinctVisitors int64
	err = s.db.Model(&PageVisit{}).
		Distinct("visitor_id").
		Count(&distinctVisitors).Error
	if err != nil {
		return nil, fmt.Errorf("error counting distinct visitors: %w", err)
	}

	// Pourcentage dans [0,100], arrondi à deux décimales, 0 sans visiteur
	if distinctVisitors > 0 {
		stats.BounceRate = math.Round(float64(bounced)/float64(distinctVisitors)*100*100) / 100
	}

	return stats, nil
}

// ListVisitors retourne les visiteurs bruts, derniers vus en premier.
func (s *Service) ListVisitors(limit, offset int) ([]Visitor, error) {
	var visitors []Visitor
	err := s.db.Order("last_visit DESC").
		Limit(limit).
		Offset(offset).
		Find(&visitors).Error
	if err != nil {
		return nil, fmt.Errorf("error listing visitors: %w", err)
	}
	return visitors, nil
}

// ListPageVisits retourne les vues brutes, plus récentes en premier.
func (s *Service) ListPageVisits(limit, offset int) ([]PageVisit, error) {
	var visits []PageVisit
	err := s.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("error listing page visits: %w", err)
	}
	return visits, nil
}

// GetRealtimeStats lit les compteurs du jour depuis Redis
func (s *Service) GetRealtimeStats() (map[string]interface{}, error) {
	if s.redis == nil {
		return map[string]interface{}{
			"today_page_views":      int64(0),
			"today_unique_visitors": int64(0),
		}, nil
	}

	ctx := context.Background()
	today := time.Now().Format("2006-01-02")

	cacheKey := fmt.Sprintf("analytics:daily:%s", today)
	pageViews, err := s.redis.HGet(ctx, cacheKey, "page_views").Int64()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	visitorKey := fmt.Sprintf("analytics:visitors:%s", today)
	uniqueVisitors, err := s.redis.SCard(ctx, visitorKey).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	return map[string]interface{}{
		"today_page_views":      pageViews,
		"today_unique_visitors": uniqueVisitors,
	}, nil
}

func cleanupOldData(db *gorm.DB, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := db.Where("created_at < ?", cutoff).Delete(&PageVisit{})
	if result.Error != nil {
		return result.Error
	}
	log.Info().Int64("rows", result.RowsAffected).Msg("Purge des anciennes vues de pages")

	result = db.Where("last_visit < ?", cutoff).Delete(&Visitor{})
	if result.Error != nil {
		return result.Error
	}
	log.Info().Int64("rows", result.RowsAffected).Msg("Purge des anciens visiteurs")

	return nil
}

func setupCleanupCron(db *gorm.DB, retentionDays int) *cron.Cron {
	c := cron.New()

	// Exécuter tous les jours à 2h du matin
	c.AddFunc("0 2 * * *", func() {
		if err := cleanupOldData(db, retentionDays); err != nil {
			log.Error().Err(err).Msg("Purge analytics échouée")
		}
	})

	c.Start()
	return c
}

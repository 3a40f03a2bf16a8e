package lfmiddleware

import (
	"littlefolio/internal/models/lfanalytics"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// TrackingMiddleware enregistre visiteurs et vues de pages sur chaque
// requête de page qualifiante. Tout échec de tracking est loggé et avalé :
// le site doit continuer à répondre même si le stockage analytics est
// indisponible.
type TrackingMiddleware struct {
	Service *lfanalytics.Service
}

func NewTrackingMiddleware(service *lfanalytics.Service) *TrackingMiddleware {
	return &TrackingMiddleware{Service: service}
}

// ShouldTrack filtre les requêtes API, assets (heuristique : un point dans
// le chemin), favicon et robots.txt.
func ShouldTrack(method, path string) bool {
	if method != "GET" {
		return false
	}
	if strings.HasPrefix(path, "/api") ||
		strings.Contains(path, ".") ||
		strings.Contains(path, "favicon") ||
		path == "/robots.txt" {
		return false
	}
	return true
}

func (tm *TrackingMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !ShouldTrack(c.Request.Method, path) {
			c.Next()
			return
		}

		ipAddress := getClientIP(c)
		userAgent := c.Request.UserAgent()
		referrer := c.Request.Referer()
		language := c.GetHeader("Accept-Language")
		host := c.Request.Host

		// Le titre de page est injecté dans l'URL par le client au
		// chargement, le serveur n'exécutant pas le code de la page
		title := c.Query("title")

		// Résolution synchrone : l'id visiteur part dans la réponse pour
		// que le beacon de temps passé puisse s'y référer
		visitor, err := tm.Service.ResolveVisitor(ipAddress, userAgent, referrer, language)
		if err != nil {
			log.Error().Err(err).Str("ip", ipAddress).Msg("Error tracking visitor")
			c.Next()
			return
		}
		c.Header("X-Visitor-Id", strconv.FormatUint(uint64(visitor.ID), 10))

		// Enregistrer la vue de manière asynchrone pour ne pas bloquer la requête
		go tm.recordVisit(visitor.ID, path, title, referrer, host)

		c.Next()
	}
}

func (tm *TrackingMiddleware) recordVisit(visitorID uint, path, title, referrer, host string) {
	if _, err := tm.Service.RecordPageVisit(visitorID, path, title, referrer, host); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error recording page visit")
	}
}

// getClientIP récupère l'IP réelle du client, "unknown" à défaut : les
// requêtes sans IP identifiable s'agrègent sur un visiteur synthétique
// unique, imprécision connue du modèle.
func getClientIP(c *gin.Context) string {
	ip := c.GetHeader("X-Real-IP")
	if ip == "" {
		ip = c.GetHeader("X-Forwarded-For")
		if ip != "" {
			// Prendre la première IP si plusieurs
			ips := strings.Split(ip, ",")
			ip = strings.TrimSpace(ips[0])
		}
	}
	if ip == "" {
		ip = c.ClientIP()
	}
	if ip == "" {
		ip = "unknown"
	}
	return ip
}

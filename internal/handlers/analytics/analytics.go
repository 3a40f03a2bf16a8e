package handlers_analytics

import (
	"errors"
	"littlefolio/internal/models/lfanalytics"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AnalyticsHandler struct {
	service *lfanalytics.Service
}

func NewAnalyticsHandler(service *lfanalytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

// GetVisitorStats retourne les statistiques visiteurs agrégées
func (ah *AnalyticsHandler) GetVisitorStats(c *gin.Context) {
	stats, err := ah.service.GetVisitorStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch visitor statistics",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListVisitors retourne les visiteurs bruts, paginés
func (ah *AnalyticsHandler) ListVisitors(c *gin.Context) {
	limit, offset := paginationParams(c)

	visitors, err := ah.service.ListVisitors(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch visitor list",
		})
		return
	}

	c.JSON(http.StatusOK, visitors)
}

// GetPageVisitStats retourne les statistiques de vues de pages agrégées
func (ah *AnalyticsHandler) GetPageVisitStats(c *gin.Context) {
	stats, err := ah.service.GetPageVisitStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch page visit statistics",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListPageVisits retourne les vues de pages brutes, paginées
func (ah *AnalyticsHandler) ListPageVisits(c *gin.Context) {
	limit, offset := paginationParams(c)

	visits, err := ah.service.ListPageVisits(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch page visit list",
		})
		return
	}

	c.JSON(http.StatusOK, visits)
}

// UpdateTimeSpent patche le temps passé sur la vue la plus récente.
// Le beacon client envoie du JSON ou un formulaire (sendBeacon) : les deux
// formats sont acceptés. La page appelante est en train de se fermer, la
// réponse ne doit jamais l'attendre.
func (ah *AnalyticsHandler) UpdateTimeSpent(c *gin.Context) {
	timeSpent, path, visitorID, ok := parseUpdateTimeRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "timeSpent and path are required",
		})
		return
	}

	err := ah.service.UpdateTimeSpent(path, visitorID, timeSpent)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "No matching page visit found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to update time spent",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetRealtimeStats retourne les compteurs du jour depuis Redis
func (ah *AnalyticsHandler) GetRealtimeStats(c *gin.Context) {
	stats, err := ah.service.GetRealtimeStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve realtime stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

type updateTimeRequest struct {
	TimeSpent *int   `json:"timeSpent"`
	Path      string `json:"path"`
	VisitorID uint   `json:"visitorId"`
}

func parseUpdateTimeRequest(c *gin.Context) (timeSpent int, path string, visitorID uint, ok bool) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req updateTimeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return 0, "", 0, false
		}
		if req.TimeSpent == nil || *req.TimeSpent < 0 || req.Path == "" {
			return 0, "", 0, false
		}
		return *req.TimeSpent, req.Path, req.VisitorID, true
	}

	// Payload beacon : formulaire multipart ou urlencoded
	rawTime := c.PostForm("timeSpent")
	path = c.PostForm("path")
	if rawTime == "" || path == "" {
		return 0, "", 0, false
	}
	timeSpent, err := strconv.Atoi(rawTime)
	if err != nil || timeSpent < 0 {
		return 0, "", 0, false
	}
	if raw := c.PostForm("visitorId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err == nil {
			visitorID = uint(id)
		}
	}
	return timeSpent, path, visitorID, true
}

func paginationParams(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 { // Limite maximale pour éviter les abus
		limit = 100
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return limit, offset
}

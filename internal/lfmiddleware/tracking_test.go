package lfmiddleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"littlefolio/internal/models/lfanalytics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestShouldTrack(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"Page racine", "GET", "/", true},
		{"Page projet", "GET", "/projects", true},
		{"POST ignoré", "POST", "/", false},
		{"API ignorée", "GET", "/api/visitors", false},
		{"Asset ignoré", "GET", "/assets/app.js", false},
		{"Favicon ignoré", "GET", "/favicon.ico", false},
		{"Robots ignoré", "GET", "/robots.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldTrack(tt.method, tt.path))
		})
	}
}

func TestGetClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newContext := func(headers map[string]string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		for k, v := range headers {
			c.Request.Header.Set(k, v)
		}
		return c
	}

	// X-Real-IP prioritaire
	c := newContext(map[string]string{"X-Real-IP": "9.9.9.9", "X-Forwarded-For": "1.2.3.4"})
	assert.Equal(t, "9.9.9.9", getClientIP(c))

	// Première IP de X-Forwarded-For
	c = newContext(map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"})
	assert.Equal(t, "1.2.3.4", getClientIP(c))

	// Repli sur l'adresse de la connexion
	c = newContext(nil)
	assert.NotEmpty(t, getClientIP(c))
}

// setupTrackingDB utilise une base mémoire partagée : l'enregistrement des
// vues se fait dans une goroutine, donc potentiellement sur une autre
// connexion du pool.
func setupTrackingDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = testDB.AutoMigrate(&lfanalytics.Visitor{}, &lfanalytics.PageVisit{})
	require.NoError(t, err)

	return testDB
}

func TestTrackingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTrackingDB(t)
	service := lfanalytics.NewService(testDB, nil, lfanalytics.NewHeuristicResolver(), 0)

	r := gin.New()
	r.Use(NewTrackingMiddleware(service).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/visitors", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/?title=Accueil", nil)
	req.Header.Set("X-Real-IP", "9.9.9.9")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Visitor-Id"))

	// L'enregistrement de la vue est asynchrone
	require.Eventually(t, func() bool {
		var count int64
		testDB.Model(&lfanalytics.PageVisit{}).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	var visit lfanalytics.PageVisit
	require.NoError(t, testDB.First(&visit).Error)
	assert.Equal(t, "/", visit.Path)
	assert.Equal(t, "Accueil", visit.Title)
	assert.True(t, visit.EntryPage)

	// Les requêtes API ne créent rien
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "/api/visitors", nil)
	req2.Header.Set("X-Real-IP", "9.9.9.9")
	r.ServeHTTP(w2, req2)
	assert.Empty(t, w2.Header().Get("X-Visitor-Id"))
}

package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	handlers_admin "littlefolio/internal/handlers/admin"
	handlers_analytics "littlefolio/internal/handlers/analytics"
	handlers_contact "littlefolio/internal/handlers/contact"
	"littlefolio/internal/lfconfig"
	"littlefolio/internal/lflog"
	"littlefolio/internal/lfmiddleware"
	"littlefolio/internal/models/lfanalytics"
	"littlefolio/internal/models/lfmessages"
	"littlefolio/internal/models/lfusers"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const VERSION string = "0.1.0"

// global instance
var (
	db            *gorm.DB
	configuration *lfconfig.Config
	redisClient   *redis.Client
	BuildID       string
)

func initDatabase() {
	var err error
	gormLogger := lflog.NewGormLogger(configuration.Logger.Level)

	switch configuration.Database.Db {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(configuration.Database.Path), &gorm.Config{
			Logger: gormLogger,
		})
	case "mysql":
		db, err = gorm.Open(mysql.Open(configuration.Database.Dsn), &gorm.Config{
			Logger: gormLogger,
		})
	case "postgres":
		db, err = gorm.Open(postgres.Open(configuration.Database.Dsn), &gorm.Config{
			Logger: gormLogger,
		})
	default:
		err = fmt.Errorf("le type de database doit etre sqlite, mysql ou postgres")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Erreur connexion base de données")
	}

	err = db.AutoMigrate(
		&lfanalytics.Visitor{},
		&lfanalytics.PageVisit{},
		&lfmessages.Message{},
		&lfusers.User{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Erreur migration")
	}

	log.Info().Msg("Base de données initialisée avec succès")
}

func initRedis() {
	if configuration.Database.Redis.Addr == "" {
		return
	}

	redisClient = redis.NewClient(&redis.Options{
		Addr: configuration.Database.Redis.Addr,
		DB:   configuration.Database.Redis.Db,
	})
	log.Info().Str("addr", configuration.Database.Redis.Addr).Msg("Compteurs temps réel Redis activés")
}

func newGeoResolver() lfanalytics.GeoResolver {
	if configuration.Analytics.GeoIPPath != "" {
		resolver, err := lfanalytics.NewMaxmindResolver(configuration.Analytics.GeoIPPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Erreur ouverture base GeoIP")
		}
		return resolver
	}
	return lfanalytics.NewHeuristicResolver()
}

func initConfiguration() {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  littlefolio -config littlefolio.yaml")
		fmt.Println("  littlefolio -example  (pour créer un fichier exemple)")
		fmt.Println("  littlefolio -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		println(VERSION)
		os.Exit(0)
	}

	lfconfig.CreateExample(shouldCreateExample, configFile)

	// Load and validate configuration
	conf, err := lfconfig.LoadAndValidate(configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	configuration = conf
}

func newServer() *gin.Engine {
	if configuration.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	if configuration.TrustedProxies != nil {
		r.SetTrustedProxies(configuration.TrustedProxies)
	}
	if configuration.TrustedPlatform != "" {
		switch configuration.TrustedPlatform {
		case "cloudflare":
			r.TrustedPlatform = gin.PlatformCloudflare
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = configuration.TrustedPlatform
		}
	}

	return r
}

// ServeMinifiedStatic sert les assets du front depuis StaticPath, avec
// minification des CSS et JS et cache long : le build du front fingerprinte
// les noms de fichiers.
func ServeMinifiedStatic(m *minify.M, staticPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, "/assets/")
		if strings.Contains(path, "..") {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		content, err := os.ReadFile(filepath.Join(staticPath, "assets", path))
		if err != nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		ext := filepath.Ext(path)
		var contentType string
		var minified []byte

		switch ext {
		case ".css":
			contentType = "text/css"
			minified, err = m.Bytes("text/css", content)
		case ".js":
			contentType = "application/javascript"
			minified, err = m.Bytes("application/javascript", content)
		case ".svg":
			// En-têtes de cache pour SVG
			c.Header("Cache-Control", "public, max-age=31536000, immutable")
			c.Header("ETag", generateETag(content))
			c.Data(http.StatusOK, "image/svg+xml", content)
			return
		default:
			c.Data(http.StatusOK, "application/octet-stream", content)
			return
		}

		if err != nil {
			minified = content
		}

		// En-têtes de cache pour CSS et JS
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Header("ETag", generateETag(minified))

		c.Data(http.StatusOK, contentType, minified)
	}
}

// Fonction helper pour générer un ETag
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf(`"%x"`, hash[:16])
}

func setRoutes(r *gin.Engine, analyticsService *lfanalytics.Service) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	// middleware rate limiter
	middlewareLimiter := lfmiddleware.NewLimiter()

	messagesService := lfmessages.NewService(db)

	analyticsHandler := handlers_analytics.NewAnalyticsHandler(analyticsService)
	contactHandler := handlers_contact.NewContactHandler(messagesService)
	adminHandler := handlers_admin.NewAdminHandler(configuration.User)

	// Assets du front
	r.GET("/assets/*filepath", ServeMinifiedStatic(m, configuration.StaticPath))

	// API analytics
	api := r.Group("/api")
	{
		api.GET("/visitors", analyticsHandler.GetVisitorStats)
		api.GET("/visitors/list", analyticsHandler.ListVisitors)
		api.GET("/pagevisits", analyticsHandler.GetPageVisitStats)
		api.GET("/pagevisits/list", analyticsHandler.ListPageVisits)
		api.POST("/pagevisits/update-time", analyticsHandler.UpdateTimeSpent)
		api.GET("/analytics/realtime", analyticsHandler.GetRealtimeStats)

		// Formulaire de contact
		api.POST("/contact", middlewareLimiter, contactHandler.Create)
		api.GET("/messages", lfmiddleware.AuthRequired(), contactHandler.List)
		api.GET("/messages/:id", lfmiddleware.AuthRequired(), contactHandler.Get)
	}

	// Routes d'authentification
	r.POST("/admin/login", middlewareLimiter, adminHandler.Login)
	r.POST("/admin/logout", adminHandler.Logout)

	// SPA : toute route non-API retombe sur index.html, le routage est
	// côté client
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ressource non trouvée"})
			return
		}
		c.File(filepath.Join(configuration.StaticPath, "index.html"))
	})
}

func startServer(r *gin.Engine) {
	log.Info().Msgf("Website démarré sur http://%s", configuration.Listen.Website)
	r.Run(configuration.Listen.Website)
}

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return "", true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	initConfiguration()
	lflog.InitLogger(configuration.Logger, configuration.Production)
	initDatabase()
	initRedis()

	analyticsService := lfanalytics.NewService(db, redisClient, newGeoResolver(), configuration.Analytics.RetentionDays)

	r := newServer()

	lfmiddleware.InitMiddleware(r, configuration.Production)
	r.Use(lfmiddleware.NewTrackingMiddleware(analyticsService).Middleware())

	setRoutes(r, analyticsService)

	startServer(r)
}

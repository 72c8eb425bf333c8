package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/config"
	"github.com/cppla/myresource/controllers"
	"github.com/cppla/myresource/middleware"
	"github.com/cppla/myresource/upload"
	"github.com/cppla/myresource/utils"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Config   config.AppConfig
	Engine   *catalog.Engine
	Prefs    *catalog.Preferences
	Pipeline *upload.Pipeline
	// Blobs is set when uploaded bytes live in object storage and must be proxied.
	Blobs controllers.BlobOpener
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg); err == nil {
			accessLog = gl
		} else {
			utils.Sugar.Warnf("gin access log %s unavailable, using app logger: %v", cfg.GinPath, err)
		}
	}
	r.Use(middleware.Ginzap(accessLog, time.RFC3339, true))
	r.Use(middleware.RecoveryWithZap(accessLog, true))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	if d.Blobs == nil && cfg.UploadDir != "" {
		r.Static(cfg.UploadURLPrefix, cfg.UploadDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	resourceController := controllers.NewResourceController(d.Engine, cfg.PublicOrigin)
	uploadController := controllers.NewUploadController(d.Pipeline, int64(cfg.MaxUploadMB)<<20)
	statsController := controllers.NewStatsController(d.Engine.Store(), cfg.StorageQuotaGB)
	preferenceController := controllers.NewPreferenceController(d.Prefs)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// share links land here
	r.GET("/resource/:id", resourceController.GetResource)
	if d.Blobs != nil {
		r.GET(upload.BlobRoute+"/*key", controllers.NewBlobController(d.Blobs).Get)
	}

	api := r.Group("/api/v1")
	api.GET("/categories", resourceController.ListCategories)
	api.GET("/resources", resourceController.ListResources)
	api.GET("/resources/:id", resourceController.GetResource)
	api.GET("/stats", statsController.GetStats)

	mutating := api.Group("")
	mutating.Use(limiter.Middleware())
	mutating.POST("/uploads/suggest", uploadController.Suggest)
	mutating.POST("/resources", uploadController.Create)
	mutating.POST("/resources/:id/download", resourceController.Download)
	mutating.POST("/resources/:id/share", resourceController.Share)

	prefs := api.Group("/preferences")
	prefs.GET("/theme", preferenceController.GetTheme)
	prefs.PUT("/theme", preferenceController.SetTheme)
	prefs.POST("/theme/toggle", preferenceController.ToggleTheme)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	})

	return r
}

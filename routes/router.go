package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/smartreader/config"
	"github.com/cppla/smartreader/controllers"
	"github.com/cppla/smartreader/middleware"
	"github.com/cppla/smartreader/utils"
)

// Handlers are the controllers mounted by SetupRouter.
type Handlers struct {
	Engagement   *controllers.EngagementController
	Verification *controllers.VerificationController
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg *config.AppConfig, h Handlers) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Logger.Warn("gin access log disabled", zap.Error(err))
		gl = utils.Logger
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(gl))
	r.Use(middleware.Recovery(gl))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	limited := middleware.RateLimitMiddleware(cfg.RateLimitPerMinute)

	verification := api.Group("/verification")
	verification.Use(limited)
	verification.POST("/codes", h.Verification.IssueCode)
	verification.GET("/cooldown", h.Verification.Cooldown)
	verification.GET("/email", h.Verification.CheckEmail)
	verification.POST("/verify", h.Verification.Verify)
	api.GET("/captcha", limited, h.Verification.Captcha)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(cfg.JWTSecret), limited)
	protected.POST("/progress", h.Engagement.SubmitProgress)
	protected.GET("/progress/:item_id", h.Engagement.GetProgress)
	protected.GET("/streak", h.Engagement.GetStreak)
	protected.GET("/achievements", h.Engagement.ListAchievements)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}

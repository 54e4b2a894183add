package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twinlog/internal/handler"
	"github.com/twinlog/internal/logging"
)

// Options 控制路由层的中间件配置。
type Options struct {
	SessionSecret  string
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(logging.GinLogger(opts.Logger), gin.Recovery())
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	// 配置会话中间件
	secret := strings.TrimSpace(opts.SessionSecret)
	if secret == "" {
		secret = "twinlog-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("twinlog_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", api.HealthCheck)

	apiGroup := r.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/register", api.Register)
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)

		// 需要认证的接口
		secured := apiGroup.Group("")
		secured.Use(api.AuthRequired())
		{
			secured.GET("/auth/me", api.Me)

			secured.POST("/history/sync", api.SyncHistory)
			secured.GET("/history", api.ListHistory)
			secured.DELETE("/history", api.DeleteHistory)
			secured.GET("/history/analysis", api.GetAnalysis)
			secured.GET("/history/analysis/summary", api.GetAnalysisSummary)

			admin := secured.Group("/settings")
			admin.Use(api.AdminRequired())
			admin.GET("/ai", api.GetAISettings)
			admin.PUT("/ai", api.UpdateAISettings)
			admin.POST("/ai/test", api.TestAIConnection)
		}
	}

	return r
}

// corsConfig 允许配置的来源；未配置时只放行浏览器扩展来源。
func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:           []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:           []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:          []string{"Content-Length"},
		AllowCredentials:       true,
		AllowBrowserExtensions: true,
		MaxAge:                 12 * time.Hour,
	}
	if len(origins) > 0 {
		config.AllowOrigins = origins
		return config
	}
	config.AllowOriginFunc = isExtensionOrigin
	return config
}

func isExtensionOrigin(origin string) bool {
	return strings.HasPrefix(origin, "chrome-extension://") ||
		strings.HasPrefix(origin, "moz-extension://") ||
		strings.HasPrefix(origin, "safari-web-extension://")
}

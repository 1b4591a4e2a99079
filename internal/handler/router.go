package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
	"shopsync/feedhub/internal/handler/middleware"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	oauthHandler *OAuthHandler,
	feedHandler *FeedHandler,
	syncHandler *SyncHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public feed for the catalog crawler
	r.GET("/feed/:name", feedHandler.Serve)

	// Etsy connect flow (browser-driven, outcome via dashboard redirect)
	auth := r.Group("/api/v1/auth")
	{
		auth.GET("/etsy/connect", oauthHandler.Connect)
		auth.GET("/etsy/callback", oauthHandler.Callback)
	}

	// Dashboard reads
	api := r.Group("/api/v1")
	{
		api.GET("/sync/status", syncHandler.Status)
		api.GET("/sync/runs", syncHandler.Runs)
	}

	// Secret-gated trigger (cron and the dashboard's "sync now")
	trigger := r.Group("/api/v1")
	trigger.Use(middleware.SyncSecret(cfg.Sync.Secret))
	{
		trigger.POST("/sync/run", syncHandler.Trigger)
	}

	return r
}

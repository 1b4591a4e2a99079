package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"shopsync/feedhub/internal/config"
)

// CORS opens the status/connect API to the dashboard origin. Methods and
// headers fall back to sensible defaults when the config leaves them out.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(corsCfg.AllowMethods) == 0 {
		corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(corsCfg.AllowHeaders) == 0 {
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Sync-Secret"}
	}
	return cors.New(corsCfg)
}

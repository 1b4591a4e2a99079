package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"shopsync/feedhub/pkg/response"
)

// SyncSecretHeader carries the shared secret that gates the sync trigger.
const SyncSecretHeader = "X-Sync-Secret"

// SyncSecret rejects trigger requests whose shared secret does not match.
// The comparison is constant-time so response timing leaks nothing about
// the expected value.
func SyncSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(SyncSecretHeader)
		if presented == "" {
			response.Unauthorized(c, "missing sync secret")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			response.Unauthorized(c, "invalid sync secret")
			c.Abort()
			return
		}
		c.Next()
	}
}

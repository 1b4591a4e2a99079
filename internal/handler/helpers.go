package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shopsync/feedhub/internal/etsy"
	"shopsync/feedhub/internal/service"
	"shopsync/feedhub/pkg/response"
)

// httpStatusForCode maps a machine-readable error code to the HTTP status
// the API responds with.
func httpStatusForCode(code string) int {
	switch code {
	case service.CodeNotConnected, service.CodeReauthorize, service.CodeAuthFailed:
		return http.StatusUnauthorized
	case service.CodeRateLimited, service.CodeDailyQuota:
		return http.StatusTooManyRequests
	case service.CodeSyncInProgress:
		return http.StatusConflict
	case service.CodeNoExactMatch:
		return http.StatusNotFound
	case service.CodeInvalidShop, service.CodeStateMismatch,
		service.CodeStateExpired, service.CodeCodeExpired:
		return http.StatusBadRequest
	case service.CodeRetriesExhausted, service.CodeAPIError, service.CodeInvalidToken:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage keeps responses and redirect parameters free of internal
// error detail.
func userMessage(code string) string {
	switch code {
	case service.CodeNotConnected:
		return "no shop connected, start the Etsy connection first"
	case service.CodeReauthorize:
		return "the Etsy connection expired, please reconnect"
	case service.CodeAuthFailed:
		return "Etsy rejected our credentials, please reconnect"
	case service.CodeRateLimited:
		return "Etsy rate limit hit, try again shortly"
	case service.CodeDailyQuota:
		return "daily Etsy request quota reached, try again after the reset"
	case service.CodeRetriesExhausted:
		return "Etsy is not responding, try again later"
	case service.CodeAPIError:
		return "Etsy rejected the request"
	case service.CodeNoExactMatch:
		return "no shop matched the configured name exactly"
	case service.CodeInvalidShop:
		return "the configured shop id or name is invalid"
	case service.CodeStateMismatch:
		return "the authorization link is invalid, please start over"
	case service.CodeStateExpired:
		return "the authorization link expired, please start over"
	case service.CodeCodeExpired:
		return "the authorization code expired, please start over"
	case service.CodeInvalidToken:
		return "Etsy returned an unexpected token, please retry"
	case service.CodeSyncInProgress:
		return "a sync is already running"
	case service.CodeStorage:
		return "storing the feed failed, try again later"
	default:
		return "something went wrong, try again later"
	}
}

// respondClassified writes the sanitized error envelope for err, attaching
// a Retry-After hint when the limiter produced one.
func respondClassified(c *gin.Context, err error) {
	code := service.ClassifyError(err)
	status := httpStatusForCode(code)

	var quotaErr *etsy.QuotaError
	var rateErr *etsy.RateLimitError
	switch {
	case errors.As(err, &quotaErr):
		setRetryAfter(c, time.Until(quotaErr.ResetAt))
	case errors.As(err, &rateErr):
		setRetryAfter(c, rateErr.RetryAfter)
	}

	response.ErrorData(c, status, status, userMessage(code), gin.H{"error_code": code})
}

func setRetryAfter(c *gin.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
}

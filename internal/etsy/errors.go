package etsy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotAuthorized means no token record exists; the shop was never
	// connected or its grant was wiped.
	ErrNotAuthorized = errors.New("etsy: not authorized")

	// ErrReauthorizationRequired means the stored refresh token was
	// rejected by the token endpoint and the owner must redo the
	// authorize flow.
	ErrReauthorizationRequired = errors.New("etsy: reauthorization required")

	// ErrAuthenticationFailed means a resource request came back 401/403
	// with a token we believed was fresh.
	ErrAuthenticationFailed = errors.New("etsy: authentication failed")

	// ErrRetriesExhausted means the retry budget ran out on transient
	// failures (5xx or transport errors).
	ErrRetriesExhausted = errors.New("etsy: retries exhausted")

	// ErrMalformedToken means an access token did not carry the expected
	// "<user_id>.<secret>" shape.
	ErrMalformedToken = errors.New("etsy: malformed access token")

	// ErrInvalidShopID means a shop id was empty or non-numeric.
	ErrInvalidShopID = errors.New("etsy: invalid shop id")

	// ErrEmptyShopName means a shop lookup was attempted with a blank name.
	ErrEmptyShopName = errors.New("etsy: shop name is empty")
)

// APIError is a non-retryable upstream rejection (4xx other than
// 401/403/429).
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("etsy: api error: status %d", e.Status)
	}
	return fmt.Sprintf("etsy: api error: status %d: %s", e.Status, e.Detail)
}

// RateLimitError means the upstream kept answering 429 through the whole
// retry budget. RetryAfter is the server hint when one was sent, zero
// otherwise.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("etsy: rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "etsy: rate limit exceeded"
}

// QuotaError means the shared daily request budget is spent. No request
// was sent. ResetAt is the next UTC midnight.
type QuotaError struct {
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("etsy: daily request quota exhausted until %s", e.ResetAt.Format(time.RFC3339))
}

// NoMatchError means a shop name search returned results but none matched
// the requested name exactly.
type NoMatchError struct {
	Name       string
	Candidates []string
}

func (e *NoMatchError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("etsy: no shop found matching %q", e.Name)
	}
	return fmt.Sprintf("etsy: no exact match for shop %q, closest: %s", e.Name, strings.Join(e.Candidates, ", "))
}

// TokenEndpointError is a non-2xx answer from the OAuth token endpoint,
// carrying the RFC 6749 error code when the body had one.
type TokenEndpointError struct {
	Status      int
	Code        string
	Description string
}

func (e *TokenEndpointError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("etsy: token endpoint returned status %d", e.Status)
	}
	return fmt.Sprintf("etsy: token endpoint returned %s (status %d)", e.Code, e.Status)
}

// Temporary reports whether the endpoint failure looks transient rather
// than a rejection of the grant itself.
func (e *TokenEndpointError) Temporary() bool {
	return e.Status >= 500
}

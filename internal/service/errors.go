package service

import (
	"errors"
	"fmt"

	"shopsync/feedhub/internal/etsy"
)

var (
	ErrInvalidCallback   = errors.New("callback missing code or state")
	ErrStateMismatch     = errors.New("unknown or already-used oauth state")
	ErrStateExpired      = errors.New("oauth handshake expired")
	ErrCodeExpired       = errors.New("authorization code expired or already used")
	ErrSyncInProgress    = errors.New("a sync run is already in progress")
	ErrShopNotConfigured = errors.New("no shop id or shop name configured")
)

// StorageError marks a durable-store or blob-store failure inside the
// pipeline so it classifies separately from upstream API failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Machine-readable error codes. They appear in failed run records and in
// API responses, so they are part of the external contract.
const (
	CodeNotConnected     = "not_connected"
	CodeReauthorize      = "reauthorize"
	CodeAuthFailed       = "auth_failed"
	CodeRateLimited      = "rate_limited"
	CodeDailyQuota       = "daily_quota_exceeded"
	CodeRetriesExhausted = "retries_exhausted"
	CodeAPIError         = "api_error"
	CodeNoExactMatch     = "no_exact_match"
	CodeInvalidShop      = "invalid_shop"
	CodeStateMismatch    = "state_mismatch"
	CodeStateExpired     = "state_expired"
	CodeCodeExpired      = "code_expired"
	CodeInvalidToken     = "invalid_token_format"
	CodeStorage          = "storage_error"
	CodeSyncInProgress   = "sync_in_progress"
	CodeInternal         = "internal"
)

// ClassifyError maps any pipeline error onto its machine-readable code.
// Unrecognized errors fall through to CodeInternal.
func ClassifyError(err error) string {
	var (
		apiErr     *etsy.APIError
		rateErr    *etsy.RateLimitError
		quotaErr   *etsy.QuotaError
		matchErr   *etsy.NoMatchError
		storageErr *StorageError
	)
	switch {
	case errors.Is(err, etsy.ErrNotAuthorized):
		return CodeNotConnected
	case errors.Is(err, etsy.ErrReauthorizationRequired):
		return CodeReauthorize
	case errors.Is(err, etsy.ErrAuthenticationFailed):
		return CodeAuthFailed
	case errors.Is(err, etsy.ErrRetriesExhausted):
		return CodeRetriesExhausted
	case errors.Is(err, etsy.ErrMalformedToken):
		return CodeInvalidToken
	case errors.Is(err, etsy.ErrInvalidShopID),
		errors.Is(err, etsy.ErrEmptyShopName),
		errors.Is(err, ErrShopNotConfigured):
		return CodeInvalidShop
	case errors.Is(err, ErrStateMismatch), errors.Is(err, ErrInvalidCallback):
		return CodeStateMismatch
	case errors.Is(err, ErrStateExpired):
		return CodeStateExpired
	case errors.Is(err, ErrCodeExpired):
		return CodeCodeExpired
	case errors.Is(err, ErrSyncInProgress):
		return CodeSyncInProgress
	case errors.As(err, &rateErr):
		return CodeRateLimited
	case errors.As(err, &quotaErr):
		return CodeDailyQuota
	case errors.As(err, &matchErr):
		return CodeNoExactMatch
	case errors.As(err, &apiErr):
		return CodeAPIError
	case errors.As(err, &storageErr):
		return CodeStorage
	default:
		return CodeInternal
	}
}

package etsy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
	"shopsync/feedhub/internal/model"
)

const (
	defaultMaxRetries = 3
	baseRetryDelay    = 500 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
	jitterFraction    = 0.3
)

// TokenSource yields an access token fresh enough for one request.
type TokenSource interface {
	GetValidToken(ctx context.Context) (*model.TokenRecord, error)
}

// Admitter gates one request against the shared rate budgets.
type Admitter interface {
	Admit(ctx context.Context) error
}

// Request describes one Etsy API call. Path is relative to the API base
// URL. An empty Method means GET.
type Request struct {
	Method string
	Path   string
	Query  url.Values
}

type attemptOutcome int

const (
	attemptSuccess attemptOutcome = iota
	attemptRetryable
	attemptAuthFailed
	attemptPermanent
)

// attemptResult classifies one wire attempt so the retry loop only has
// to inspect the outcome tag.
type attemptResult struct {
	outcome    attemptOutcome
	status     int
	body       []byte
	retryAfter time.Duration
	err        error
}

// Executor runs authenticated Etsy requests through the token manager
// and rate limiter, retrying transient failures with exponential backoff.
type Executor struct {
	http    *http.Client
	tokens  TokenSource
	limiter Admitter
	baseURL string
	apiKey  string
	logger  *zap.Logger

	maxRetries int
	sleepFunc  func(ctx context.Context, d time.Duration) error
	randFunc   func() float64
}

func NewExecutor(cfg config.EtsyConfig, tokens TokenSource, limiter Admitter, httpClient *http.Client, logger *zap.Logger) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		http:       httpClient,
		tokens:     tokens,
		limiter:    limiter,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		sleepFunc:  sleepContext,
		randFunc:   rand.Float64,
	}
}

// Do executes req and decodes the JSON response into out (skipped when
// out is nil). The token is resolved once per call; the limiter is asked
// once per attempt, so retries never jump the shared queue. Transient
// failures (429, 5xx, transport errors) are retried up to the budget;
// auth failures and other 4xx are returned immediately.
func (e *Executor) Do(ctx context.Context, req Request, out interface{}) error {
	rec, err := e.tokens.GetValidToken(ctx)
	if err != nil {
		return err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := e.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := e.limiter.Admit(ctx); err != nil {
			return err
		}

		res := e.attempt(ctx, method, endpoint, rec.AccessToken)
		e.logAttempt(req.Path, attempt, res)

		switch res.outcome {
		case attemptSuccess:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(res.body, out); err != nil {
				return fmt.Errorf("decode response from %s: %w", req.Path, err)
			}
			return nil

		case attemptAuthFailed:
			return ErrAuthenticationFailed

		case attemptPermanent:
			if res.err != nil {
				return res.err
			}
			return &APIError{Status: res.status, Detail: bodySnippet(res.body)}

		case attemptRetryable:
			if attempt >= e.maxRetries {
				if res.status == http.StatusTooManyRequests {
					return &RateLimitError{RetryAfter: res.retryAfter}
				}
				if res.err != nil {
					return fmt.Errorf("%w: %v", ErrRetriesExhausted, res.err)
				}
				return fmt.Errorf("%w: last status %d", ErrRetriesExhausted, res.status)
			}
			delay := e.backoff(attempt)
			e.logger.Warn("retrying request",
				zap.String("path", req.Path),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			if err := e.sleepFunc(ctx, delay); err != nil {
				return err
			}
		}
	}
}

func (e *Executor) attempt(ctx context.Context, method, endpoint, token string) attemptResult {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return attemptResult{outcome: attemptPermanent, err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("x-api-key", e.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return attemptResult{outcome: attemptRetryable, err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{outcome: attemptRetryable, status: resp.StatusCode, err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return attemptResult{outcome: attemptSuccess, status: resp.StatusCode, body: body}
	case resp.StatusCode == http.StatusTooManyRequests:
		return attemptResult{
			outcome:    attemptRetryable,
			status:     resp.StatusCode,
			body:       body,
			retryAfter: parseRetryAfter(resp.Header),
		}
	case resp.StatusCode >= 500:
		return attemptResult{outcome: attemptRetryable, status: resp.StatusCode, body: body}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return attemptResult{outcome: attemptAuthFailed, status: resp.StatusCode, body: body}
	default:
		return attemptResult{outcome: attemptPermanent, status: resp.StatusCode, body: body}
	}
}

// backoff returns the pre-sleep delay for the given zero-based attempt:
// exponential doubling from the base with up to 30% positive jitter,
// capped at the maximum.
func (e *Executor) backoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	delay += time.Duration(e.randFunc() * jitterFraction * float64(delay))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func (e *Executor) logAttempt(path string, attempt int, res attemptResult) {
	fields := []zap.Field{
		zap.String("path", path),
		zap.Int("attempt", attempt+1),
		zap.Int("status", res.status),
	}
	if res.err != nil {
		fields = append(fields, zap.Error(res.err))
	}
	if res.outcome == attemptSuccess {
		e.logger.Debug("request succeeded", fields...)
		return
	}
	e.logger.Warn("request failed", fields...)
}

func parseRetryAfter(h http.Header) time.Duration {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// bodySnippet trims an error body down to something loggable.
func bodySnippet(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return string(body)
}

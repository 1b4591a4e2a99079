package etsy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
	"shopsync/feedhub/internal/model"
)

type fakeTokenSource struct {
	rec   *model.TokenRecord
	err   error
	calls int
}

func (f *fakeTokenSource) GetValidToken(_ context.Context) (*model.TokenRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

type fakeAdmitter struct {
	err   error
	calls int
}

func (f *fakeAdmitter) Admit(_ context.Context) error {
	f.calls++
	return f.err
}

type scriptedResponse struct {
	status int
	body   string
	header map[string]string
}

type capturedRequest struct {
	method   string
	path     string
	rawQuery string
	auth     string
	apiKey   string
}

// scriptedServer pops one response per request; the last response repeats
// once the script runs out.
type scriptedServer struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  []capturedRequest
	srv       *httptest.Server
}

func newScriptedServer(responses ...scriptedResponse) *scriptedServer {
	s := &scriptedServer{responses: responses}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, capturedRequest{
			method:   r.Method,
			path:     r.URL.Path,
			rawQuery: r.URL.RawQuery,
			auth:     r.Header.Get("Authorization"),
			apiKey:   r.Header.Get("x-api-key"),
		})
		resp := s.responses[0]
		if len(s.responses) > 1 {
			s.responses = s.responses[1:]
		}
		s.mu.Unlock()

		for k, v := range resp.header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	return s
}

func (s *scriptedServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedServer) request(i int) capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

type executorHarness struct {
	exec    *Executor
	tokens  *fakeTokenSource
	limiter *fakeAdmitter
	slept   []time.Duration
}

func newExecutorHarness(baseURL string, client *http.Client) *executorHarness {
	h := &executorHarness{
		tokens:  &fakeTokenSource{rec: &model.TokenRecord{AccessToken: "111.secret"}},
		limiter: &fakeAdmitter{},
	}
	cfg := config.EtsyConfig{BaseURL: baseURL, APIKey: "keystring"}
	h.exec = NewExecutor(cfg, h.tokens, h.limiter, client, zap.NewNop())
	h.exec.sleepFunc = func(_ context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}
	h.exec.randFunc = func() float64 { return 0 }
	return h
}

func TestDo_SuccessDecodesAndSendsAuthHeaders(t *testing.T) {
	s := newScriptedServer(scriptedResponse{status: 200, body: `{"shop_id":77,"shop_name":"Acme"}`})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())

	var shop Shop
	err := h.exec.Do(context.Background(), Request{Path: "/shops/77"}, &shop)
	require.NoError(t, err)

	assert.Equal(t, int64(77), shop.ShopID)
	assert.Equal(t, "Acme", shop.ShopName)
	assert.Equal(t, 1, h.tokens.calls, "token resolved once per call")
	assert.Equal(t, 1, h.limiter.calls)

	req := s.request(0)
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/shops/77", req.path)
	assert.Equal(t, "Bearer 111.secret", req.auth)
	assert.Equal(t, "keystring", req.apiKey)
}

func TestDo_EncodesQueryParameters(t *testing.T) {
	s := newScriptedServer(scriptedResponse{status: 200, body: `{}`})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())

	query := url.Values{"limit": {"100"}, "offset": {"200"}}
	require.NoError(t, h.exec.Do(context.Background(), Request{Path: "/x", Query: query}, nil))

	assert.Equal(t, "limit=100&offset=200", s.request(0).rawQuery)
}

func TestDo_RetriesTransientFailuresThenSucceeds(t *testing.T) {
	s := newScriptedServer(
		scriptedResponse{status: 500, body: "oops"},
		scriptedResponse{status: 502, body: "bad gateway"},
		scriptedResponse{status: 200, body: `{"count":0,"results":[]}`},
	)
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())

	var page listingsPage
	require.NoError(t, h.exec.Do(context.Background(), Request{Path: "/x"}, &page))

	assert.Equal(t, 3, s.requestCount())
	assert.Equal(t, 3, h.limiter.calls, "every attempt is admitted separately")
	assert.Equal(t, 1, h.tokens.calls)
	// Zero jitter: doubling from the base delay.
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, h.slept)
}

func TestDo_ExhaustsRetryBudget(t *testing.T) {
	s := newScriptedServer(scriptedResponse{status: 500, body: "oops"})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())

	err := h.exec.Do(context.Background(), Request{Path: "/x"}, nil)
	assert.ErrorIs(t, err, ErrRetriesExhausted)

	// Budget of 3 retries means 4 attempts total.
	assert.Equal(t, 4, s.requestCount())
	assert.Len(t, h.slept, 3)
}

func TestDo_PersistentRateLimitSurfacesRetryAfter(t *testing.T) {
	s := newScriptedServer(scriptedResponse{
		status: 429,
		body:   `{"error":"slow down"}`,
		header: map[string]string{"Retry-After": "7"},
	})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())

	err := h.exec.Do(context.Background(), Request{Path: "/x"}, nil)

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 7*time.Second, rateErr.RetryAfter)
	assert.Equal(t, 4, s.requestCount(), "429 is retried before giving up")
}

func TestDo_AuthFailureIsImmediate(t *testing.T) {
	for _, status := range []int{401, 403} {
		s := newScriptedServer(scriptedResponse{status: status, body: `{"error":"nope"}`})
		h := newExecutorHarness(s.srv.URL, s.srv.Client())

		err := h.exec.Do(context.Background(), Request{Path: "/x"}, nil)

		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.Equal(t, 1, s.requestCount(), "auth failures must not retry")
		assert.Empty(t, h.slept)
		s.srv.Close()
	}
}

func TestDo_OtherClientErrorsArePermanent(t *testing.T) {
	s := newScriptedServer(scriptedResponse{status: 404, body: `{"error":"no such shop"}`})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())

	err := h.exec.Do(context.Background(), Request{Path: "/shops/0"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, 1, s.requestCount())
}

func TestDo_NetworkErrorsAreRetried(t *testing.T) {
	// Nothing listens here; every attempt fails at dial time.
	h := newExecutorHarness("http://127.0.0.1:1", &http.Client{Timeout: time.Second})

	err := h.exec.Do(context.Background(), Request{Path: "/x"}, nil)

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 4, h.limiter.calls)
}

func TestDo_TokenFailureShortCircuits(t *testing.T) {
	s := newScriptedServer(scriptedResponse{status: 200, body: `{}`})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())
	h.tokens.err = ErrNotAuthorized

	err := h.exec.Do(context.Background(), Request{Path: "/x"}, nil)

	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 0, s.requestCount())
	assert.Equal(t, 0, h.limiter.calls)
}

func TestDo_QuotaRejectionShortCircuits(t *testing.T) {
	s := newScriptedServer(scriptedResponse{status: 200, body: `{}`})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())
	h.limiter.err = &QuotaError{ResetAt: time.Now().Add(time.Hour)}

	err := h.exec.Do(context.Background(), Request{Path: "/x"}, nil)

	var quotaErr *QuotaError
	assert.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 0, s.requestCount())
}

func TestDo_NilOutSkipsDecoding(t *testing.T) {
	s := newScriptedServer(scriptedResponse{status: 200, body: "not json at all"})
	defer s.srv.Close()
	h := newExecutorHarness(s.srv.URL, s.srv.Client())

	assert.NoError(t, h.exec.Do(context.Background(), Request{Path: "/x"}, nil))
}

func TestBackoff_MonotonicAndCapped(t *testing.T) {
	h := newExecutorHarness("http://unused", nil)

	// Worst-case jitter keeps the schedule monotonic because consecutive
	// ranges never overlap (1.3x < 2x).
	h.exec.randFunc = func() float64 { return 1.0 }

	var prev time.Duration
	for attempt := 0; attempt < 10; attempt++ {
		d := h.exec.backoff(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d regressed", attempt)
		assert.LessOrEqual(t, d, maxRetryDelay)
		prev = d
	}
}

func TestBackoff_ZeroJitterSchedule(t *testing.T) {
	h := newExecutorHarness("http://unused", nil)

	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, h.exec.backoff(attempt), "attempt %d", attempt)
	}
}

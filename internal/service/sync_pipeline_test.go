package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
	"shopsync/feedhub/internal/etsy"
	"shopsync/feedhub/internal/model"
	"shopsync/feedhub/internal/repository"
)

// fakeEtsy stands in for both the Etsy API and its token endpoint so the
// whole chain (token manager, limiter, executor, client, sync service)
// can run against one server.
type fakeEtsy struct {
	mu           sync.Mutex
	tokenHits    int
	resourceAuth []string
}

func (f *fakeEtsy) tokenEndpointHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenHits
}

func (f *fakeEtsy) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resourceAuth...)
}

func (f *fakeEtsy) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", f.handleToken)
	mux.HandleFunc("/shops/77", f.handleShop)
	mux.HandleFunc("/shops/77/listings/active", f.handleListings)
	mux.HandleFunc("/listings/batch", f.handleBatch)
	return mux
}

func (f *fakeEtsy) recordResource(r *http.Request) {
	f.mu.Lock()
	f.resourceAuth = append(f.resourceAuth, r.Header.Get("Authorization"))
	f.mu.Unlock()
}

func (f *fakeEtsy) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenHits++
	f.mu.Unlock()

	_ = r.ParseForm()
	if r.PostForm.Get("grant_type") != "refresh_token" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_, _ = w.Write([]byte(`{
		"access_token": "111.freshaccess",
		"refresh_token": "111.freshrefresh",
		"token_type": "Bearer",
		"expires_in": 3600
	}`))
}

func (f *fakeEtsy) handleShop(w http.ResponseWriter, r *http.Request) {
	f.recordResource(r)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"shop_id":       77,
		"shop_name":     "Acme",
		"url":           "https://www.etsy.com/shop/Acme",
		"currency_code": "USD",
	})
}

func (f *fakeEtsy) handleListings(w http.ResponseWriter, r *http.Request) {
	f.recordResource(r)

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	n := 100
	if offset == 100 {
		n = 50
	}
	results := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		id := offset + i + 1
		results = append(results, map[string]interface{}{
			"listing_id": id,
			"title":      fmt.Sprintf("Item %d", id),
			"state":      "active",
			"quantity":   3,
			"url":        fmt.Sprintf("https://www.etsy.com/listing/%d", id),
			"price":      map[string]interface{}{"amount": 1250, "divisor": 100, "currency_code": "USD"},
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"count": 150, "results": results})
}

func (f *fakeEtsy) handleBatch(w http.ResponseWriter, r *http.Request) {
	f.recordResource(r)

	ids := strings.Split(r.URL.Query().Get("listing_ids"), ",")
	results := make([]map[string]interface{}, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		results = append(results, map[string]interface{}{
			"listing_id": id,
			"images": []map[string]interface{}{
				{"listing_image_id": id * 10, "listing_id": id, "rank": 1,
					"url_fullxfull": fmt.Sprintf("https://img.etsy.com/full/%d.jpg", id)},
			},
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"count": len(results), "results": results})
}

// TestSyncPipeline_EndToEnd drives a full run through the real client
// chain: the seeded token is already expired, so the run must refresh it
// first, then page through 150 listings, batch their images, and upload
// the rendered feed.
func TestSyncPipeline_EndToEnd(t *testing.T) {
	api := &fakeEtsy{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	logger := zap.NewNop()
	stateStore := repository.NewMemoryStateStore()

	stale := model.TokenRecord{
		AccessToken:  "111.staleaccess",
		RefreshToken: "111.stalerefresh",
		ExpiresAt:    time.Now().Add(-time.Hour),
		UserID:       "111",
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, stateStore.Set(context.Background(), repository.KeyTokens, data, 0))

	etsyCfg := config.EtsyConfig{
		APIKey:   "keystring",
		ShopID:   "77",
		BaseURL:  srv.URL,
		TokenURL: srv.URL + "/oauth/token",
		QPSLimit: 5,
		QPDLimit: 5000,
	}

	auth := etsy.NewAuthClient(etsyCfg, srv.Client(), logger)
	tokens := etsy.NewTokenManager(stateStore, auth, logger)
	limiter := etsy.NewLimiter(stateStore, etsyCfg.QPSLimit, etsyCfg.QPDLimit, logger)
	executor := etsy.NewExecutor(etsyCfg, tokens, limiter, srv.Client(), logger)
	catalog := etsy.NewClient(executor, logger)

	runs := &fakeRunRepo{}
	feedStore := repository.NewMemoryFeedStore("https://cdn.example.com/feeds")
	svc := NewSyncService(catalog, tokens, runs, feedStore,
		etsyCfg, config.SyncConfig{FeedObject: "catalog.csv"}, logger)

	run, err := svc.Run(context.Background(), model.RunTriggerCron)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, model.RunTriggerCron, run.Trigger)
	assert.Equal(t, 150, run.ListingsCount)
	assert.Equal(t, "https://cdn.example.com/feeds/catalog.csv", run.FeedURL)
	require.Len(t, runs.created, 1)

	// The expired token was refreshed exactly once, and every resource
	// request used the rotated access token.
	assert.Equal(t, 1, api.tokenEndpointHits())
	headers := api.authHeaders()
	require.Len(t, headers, 5, "1 shop + 2 listing pages + 2 image batches")
	for _, header := range headers {
		assert.Equal(t, "Bearer 111.freshaccess", header)
	}

	var rotated model.TokenRecord
	data, err = stateStore.Get(context.Background(), repository.KeyTokens)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rotated))
	assert.Equal(t, "111.freshaccess", rotated.AccessToken)
	assert.Equal(t, "111.freshrefresh", rotated.RefreshToken)

	var budget model.LimiterState
	data, err = stateStore.Get(context.Background(), repository.KeyRateLimit)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &budget))
	assert.Equal(t, 5, budget.DailyCount, "every request drew from the shared budget")

	obj, err := feedStore.Get(context.Background(), "catalog.csv")
	require.NoError(t, err)
	require.NotNil(t, obj)

	lines := strings.Split(strings.TrimRight(string(obj.Content), "\n"), "\n")
	require.Len(t, lines, 151, "header plus one row per listing")
	assert.Equal(t,
		"id,title,description,availability,condition,price,link,image_link,additional_image_link,brand,inventory",
		lines[0],
	)
	assert.Contains(t, lines[1], "12.50 USD")
	assert.Contains(t, lines[1], "https://img.etsy.com/full/1.jpg")
	assert.Contains(t, lines[1], "in stock")
}

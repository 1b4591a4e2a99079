package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
etsy:
  api_key: test-key
  redirect_url: http://localhost:8080/api/v1/auth/etsy/callback
  shop_id: "12345"
sync:
  secret: cron-secret
dashboard:
  url: http://localhost:3000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.State.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.State.PropagationDelay)
	assert.Equal(t, "https://openapi.etsy.com/v3/application", cfg.Etsy.BaseURL)
	assert.Equal(t, "https://api.etsy.com/v3/public/oauth/token", cfg.Etsy.TokenURL)
	assert.Equal(t, "https://www.etsy.com/oauth/connect", cfg.Etsy.AuthorizeURL)
	assert.Equal(t, []string{"listings_r", "shops_r"}, cfg.Etsy.Scopes)
	assert.Equal(t, 5, cfg.Etsy.QPSLimit)
	assert.Equal(t, 5000, cfg.Etsy.QPDLimit)
	assert.Equal(t, "catalog.csv", cfg.Sync.FeedObject)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ReadsConfiguredValues(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9001
  mode: release
etsy:
  api_key: test-key
  redirect_url: http://example.com/callback
  shop_name: AcmeCrafts
  qps_limit: 2
  qpd_limit: 100
sync:
  secret: cron-secret
  feed_object: shop-feed.csv
dashboard:
  url: https://dash.example.com
state:
  backend: memory
  propagation_delay: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "AcmeCrafts", cfg.Etsy.ShopName)
	assert.Equal(t, 2, cfg.Etsy.QPSLimit)
	assert.Equal(t, 100, cfg.Etsy.QPDLimit)
	assert.Equal(t, "shop-feed.csv", cfg.Sync.FeedObject)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.State.PropagationDelay)
}

func TestValidate_ReportsAllMissingKeysAtOnce(t *testing.T) {
	err := Validate(&Config{})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "etsy.api_key")
	assert.Contains(t, err.Error(), "etsy.redirect_url")
	assert.Contains(t, err.Error(), "etsy.shop_id or etsy.shop_name")
	assert.Contains(t, err.Error(), "sync.secret")
	assert.Contains(t, err.Error(), "dashboard.url")
}

func TestValidate_AcceptsShopNameInsteadOfID(t *testing.T) {
	cfg := &Config{}
	cfg.Etsy.APIKey = "key"
	cfg.Etsy.RedirectURL = "http://example.com/callback"
	cfg.Etsy.ShopName = "AcmeCrafts"
	cfg.Sync.Secret = "secret"
	cfg.Dashboard.URL = "http://localhost:3000"

	assert.NoError(t, Validate(cfg))
}

package etsy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
)

func newTestAuthClient(t *testing.T, handler http.HandlerFunc) (*AuthClient, *url.Values) {
	t.Helper()

	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.EtsyConfig{
		APIKey:       "keystring",
		RedirectURL:  "https://app.example.com/api/v1/auth/etsy/callback",
		Scopes:       []string{"listings_r", "shops_r"},
		TokenURL:     srv.URL,
		AuthorizeURL: "https://www.etsy.com/oauth/connect",
	}
	return NewAuthClient(cfg, srv.Client(), zap.NewNop()), &form
}

func grantResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{
		"access_token": "111.access",
		"refresh_token": "111.refresh",
		"token_type": "Bearer",
		"expires_in": 3600
	}`))
}

func TestAuthorizeURL_CarriesPKCEParameters(t *testing.T) {
	client, _ := newTestAuthClient(t, func(w http.ResponseWriter, _ *http.Request) {
		grantResponse(w)
	})

	raw := client.AuthorizeURL("statetoken", "challengevalue")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.etsy.com", parsed.Host)
	assert.Equal(t, "/oauth/connect", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "keystring", q.Get("client_id"))
	assert.Equal(t, "https://app.example.com/api/v1/auth/etsy/callback", q.Get("redirect_uri"))
	assert.Equal(t, "listings_r shops_r", q.Get("scope"))
	assert.Equal(t, "statetoken", q.Get("state"))
	assert.Equal(t, "challengevalue", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestExchangeCode_PostsFormAndDecodesGrant(t *testing.T) {
	client, form := newTestAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		grantResponse(w)
	})

	grant, err := client.ExchangeCode(context.Background(), "authcode", "verifiervalue")
	require.NoError(t, err)

	assert.Equal(t, "111.access", grant.AccessToken)
	assert.Equal(t, "111.refresh", grant.RefreshToken)
	assert.Equal(t, int64(3600), grant.ExpiresIn)

	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "keystring", form.Get("client_id"))
	assert.Equal(t, "https://app.example.com/api/v1/auth/etsy/callback", form.Get("redirect_uri"))
	assert.Equal(t, "authcode", form.Get("code"))
	assert.Equal(t, "verifiervalue", form.Get("code_verifier"))
}

func TestRefreshGrant_PostsRefreshToken(t *testing.T) {
	client, form := newTestAuthClient(t, func(w http.ResponseWriter, _ *http.Request) {
		grantResponse(w)
	})

	grant, err := client.RefreshGrant(context.Background(), "111.oldrefresh")
	require.NoError(t, err)

	assert.Equal(t, "111.access", grant.AccessToken)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "keystring", form.Get("client_id"))
	assert.Equal(t, "111.oldrefresh", form.Get("refresh_token"))
	assert.Empty(t, form.Get("code"), "refresh requests carry no authorization code")
}

func TestToken_RejectionBecomesTokenEndpointError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      string
		wantTemporary bool
	}{
		{
			name:          "invalid grant is permanent",
			status:        http.StatusBadRequest,
			body:          `{"error":"invalid_grant","error_description":"code expired"}`,
			wantCode:      "invalid_grant",
			wantTemporary: false,
		},
		{
			name:          "server outage is temporary",
			status:        http.StatusServiceUnavailable,
			body:          `{"error":"temporarily_unavailable"}`,
			wantCode:      "temporarily_unavailable",
			wantTemporary: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestAuthClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.RefreshGrant(context.Background(), "111.refresh")

			var endpointErr *TokenEndpointError
			require.ErrorAs(t, err, &endpointErr)
			assert.Equal(t, tt.status, endpointErr.Status)
			assert.Equal(t, tt.wantCode, endpointErr.Code)
			assert.Equal(t, tt.wantTemporary, endpointErr.Temporary())
		})
	}
}

func TestToken_IncompleteGrantRejected(t *testing.T) {
	client, _ := newTestAuthClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"111.access"}`))
	})

	_, err := client.ExchangeCode(context.Background(), "authcode", "verifiervalue")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete grant")
}

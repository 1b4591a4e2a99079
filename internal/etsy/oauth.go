package etsy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
)

// TokenGrant is a successful answer from the Etsy token endpoint. Etsy
// rotates the refresh token on every grant, so both values must be
// persisted together.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthClient speaks the OAuth side of the Etsy v3 API: building the
// authorize URL and trading codes or refresh tokens for grants. Resource
// requests go through the Executor instead.
type AuthClient struct {
	http   *http.Client
	cfg    config.EtsyConfig
	logger *zap.Logger
}

func NewAuthClient(cfg config.EtsyConfig, httpClient *http.Client, logger *zap.Logger) *AuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AuthClient{
		http:   httpClient,
		cfg:    cfg,
		logger: logger,
	}
}

// AuthorizeURL builds the consent-page URL for a PKCE authorization
// request. The state and challenge must come from a stored handshake.
func (a *AuthClient) AuthorizeURL(state, codeChallenge string) string {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {a.cfg.APIKey},
		"redirect_uri":          {a.cfg.RedirectURL},
		"scope":                 {strings.Join(a.cfg.Scopes, " ")},
		"state":                 {state},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
	}
	return a.cfg.AuthorizeURL + "?" + params.Encode()
}

// ExchangeCode trades an authorization code plus its PKCE verifier for
// the first token grant.
func (a *AuthClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenGrant, error) {
	params := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {a.cfg.APIKey},
		"redirect_uri":  {a.cfg.RedirectURL},
		"code":          {code},
		"code_verifier": {codeVerifier},
	}
	grant, err := a.token(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return grant, nil
}

// RefreshGrant trades a refresh token for a new grant.
func (a *AuthClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	params := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {a.cfg.APIKey},
		"refresh_token": {refreshToken},
	}
	grant, err := a.token(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("refresh grant: %w", err)
	}
	return grant, nil
}

func (a *AuthClient) token(ctx context.Context, params url.Values) (*TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &oauthErr)
		a.logger.Warn("token endpoint rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("error", oauthErr.Error),
		)
		return nil, &TokenEndpointError{
			Status:      resp.StatusCode,
			Code:        oauthErr.Error,
			Description: oauthErr.Description,
		}
	}

	var grant TokenGrant
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		return nil, fmt.Errorf("token endpoint returned incomplete grant")
	}
	return &grant, nil
}

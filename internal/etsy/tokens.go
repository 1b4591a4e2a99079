package etsy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopsync/feedhub/internal/model"
	"shopsync/feedhub/internal/repository"
)

// expiryBuffer is how long before the recorded expiry a token is already
// treated as expired, absorbing clock skew and in-flight request time.
const expiryBuffer = 5 * time.Minute

// TokenRefresher is the slice of AuthClient the manager needs.
type TokenRefresher interface {
	RefreshGrant(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// TokenManager owns the stored token record: it hands out access tokens
// that are guaranteed fresh for at least the expiry buffer, refreshing
// through the token endpoint when they are not.
type TokenManager struct {
	store   repository.StateStore
	auth    TokenRefresher
	logger  *zap.Logger
	buffer  time.Duration
	nowFunc func() time.Time
}

func NewTokenManager(store repository.StateStore, auth TokenRefresher, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		store:   store,
		auth:    auth,
		logger:  logger,
		buffer:  expiryBuffer,
		nowFunc: time.Now,
	}
}

// GetValidToken returns the stored record, refreshing it first when it is
// within the expiry buffer. At most one refresh is attempted per call.
// Returns ErrNotAuthorized when no record exists and
// ErrReauthorizationRequired when the refresh token itself is rejected.
func (m *TokenManager) GetValidToken(ctx context.Context) (*model.TokenRecord, error) {
	rec, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if m.nowFunc().Before(rec.ExpiresAt.Add(-m.buffer)) {
		return rec, nil
	}

	m.logger.Info("access token near expiry, refreshing",
		zap.Time("expires_at", rec.ExpiresAt),
	)
	grant, err := m.auth.RefreshGrant(ctx, rec.RefreshToken)
	if err != nil {
		var te *TokenEndpointError
		if errors.As(err, &te) && !te.Temporary() {
			m.logger.Warn("refresh token rejected, shop must reconnect",
				zap.Int("status", te.Status),
				zap.String("error", te.Code),
			)
			return nil, ErrReauthorizationRequired
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	updated := &model.TokenRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    m.nowFunc().Add(time.Duration(grant.ExpiresIn) * time.Second),
		UserID:       rec.UserID,
		ShopID:       rec.ShopID,
	}
	if userID, err := ParseUserID(grant.AccessToken); err == nil {
		updated.UserID = userID
	}
	if err := m.Save(ctx, updated); err != nil {
		return nil, err
	}
	m.logger.Info("token refreshed", zap.Time("expires_at", updated.ExpiresAt))
	return updated, nil
}

// Current returns the stored record without touching its freshness.
// Returns ErrNotAuthorized when no record exists.
func (m *TokenManager) Current(ctx context.Context) (*model.TokenRecord, error) {
	return m.load(ctx)
}

// Save persists a full token record, replacing whatever was stored.
func (m *TokenManager) Save(ctx context.Context, rec *model.TokenRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	if err := m.store.Set(ctx, repository.KeyTokens, data, 0); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// SetShopID records the resolved shop id alongside the tokens so later
// runs skip the lookup.
func (m *TokenManager) SetShopID(ctx context.Context, shopID string) error {
	rec, err := m.load(ctx)
	if err != nil {
		return err
	}
	if rec.ShopID == shopID {
		return nil
	}
	rec.ShopID = shopID
	return m.Save(ctx, rec)
}

func (m *TokenManager) load(ctx context.Context) (*model.TokenRecord, error) {
	data, err := m.store.Get(ctx, repository.KeyTokens)
	if err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	if data == nil {
		return nil, ErrNotAuthorized
	}
	var rec model.TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode stored tokens: %w", err)
	}
	return &rec, nil
}

// ParseUserID extracts the numeric user id prefix from an Etsy access
// token, which is formatted "<user_id>.<secret>". Returns
// ErrMalformedToken when the delimiter or prefix is missing.
func ParseUserID(accessToken string) (string, error) {
	idx := strings.IndexByte(accessToken, '.')
	if idx <= 0 {
		return "", ErrMalformedToken
	}
	return accessToken[:idx], nil
}

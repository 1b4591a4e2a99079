package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopsync/feedhub/internal/etsy"
	"shopsync/feedhub/internal/model"
	"shopsync/feedhub/internal/repository"
	"shopsync/feedhub/pkg/crypto"
)

const (
	// handshakeTTL bounds how long a started handshake may wait for its
	// callback. The age check against CreatedAt is authoritative.
	handshakeTTL = 10 * time.Minute

	// handshakeStoreTTL backstops cleanup of abandoned handshakes. It is
	// deliberately longer than handshakeTTL so late callbacks still find
	// the entry and fail with the expired error, not the mismatch one.
	handshakeStoreTTL = 15 * time.Minute
)

// AuthGateway is the slice of the Etsy auth client the handshake needs.
type AuthGateway interface {
	AuthorizeURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*etsy.TokenGrant, error)
}

// TokenSaver persists the token record a completed handshake produces.
type TokenSaver interface {
	Save(ctx context.Context, rec *model.TokenRecord) error
}

type OAuthService interface {
	Start(ctx context.Context) (string, error)
	Callback(ctx context.Context, code, state string) (*model.TokenRecord, error)
}

type oauthService struct {
	auth       AuthGateway
	tokens     TokenSaver
	stateStore repository.StateStore
	logger     *zap.Logger

	propagationDelay time.Duration
	nowFunc          func() time.Time
	sleepFunc        func(ctx context.Context, d time.Duration) error
}

func NewOAuthService(
	auth AuthGateway,
	tokens TokenSaver,
	stateStore repository.StateStore,
	propagationDelay time.Duration,
	logger *zap.Logger,
) OAuthService {
	return &oauthService{
		auth:             auth,
		tokens:           tokens,
		stateStore:       stateStore,
		logger:           logger,
		propagationDelay: propagationDelay,
		nowFunc:          time.Now,
		sleepFunc:        sleepContext,
	}
}

// Start begins a PKCE handshake: it stores a fresh verifier keyed by a
// random state token and returns the consent URL to redirect to.
func (s *oauthService) Start(ctx context.Context) (string, error) {
	verifier, err := crypto.GenerateCodeVerifier()
	if err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	state, err := crypto.GenerateStateToken()
	if err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}

	handshake := model.HandshakeState{
		CodeVerifier: verifier,
		CreatedAt:    s.nowFunc(),
	}
	data, err := json.Marshal(handshake)
	if err != nil {
		return "", fmt.Errorf("marshal handshake state: %w", err)
	}
	if err := s.stateStore.Set(ctx, repository.OAuthStateKey(state), data, handshakeStoreTTL); err != nil {
		return "", fmt.Errorf("store handshake state: %w", err)
	}

	// The state store is eventually consistent; give the write a moment
	// to settle before the consent page can bounce the user back.
	if s.propagationDelay > 0 {
		if err := s.sleepFunc(ctx, s.propagationDelay); err != nil {
			return "", err
		}
	}

	s.logger.Info("oauth handshake started")
	return s.auth.AuthorizeURL(state, crypto.CodeChallengeS256(verifier)), nil
}

// Callback completes the handshake: it validates the state entry, trades
// the code for a grant, and persists the resulting token record. The
// handshake entry is single-use and is deleted on every exit path so a
// replayed callback cannot reuse the verifier.
func (s *oauthService) Callback(ctx context.Context, code, state string) (*model.TokenRecord, error) {
	if code == "" || state == "" {
		return nil, ErrInvalidCallback
	}

	key := repository.OAuthStateKey(state)
	defer func() {
		if err := s.stateStore.Delete(ctx, key); err != nil {
			s.logger.Warn("delete handshake state", zap.Error(err))
		}
	}()

	data, err := s.stateStore.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read handshake state: %w", err)
	}
	if data == nil {
		return nil, ErrStateMismatch
	}
	var handshake model.HandshakeState
	if err := json.Unmarshal(data, &handshake); err != nil {
		return nil, ErrStateMismatch
	}
	if s.nowFunc().Sub(handshake.CreatedAt) > handshakeTTL {
		return nil, ErrStateExpired
	}

	grant, err := s.auth.ExchangeCode(ctx, code, handshake.CodeVerifier)
	if err != nil {
		var te *etsy.TokenEndpointError
		if errors.As(err, &te) && te.Code == "invalid_grant" {
			s.logger.Warn("authorization code rejected", zap.Int("status", te.Status))
			return nil, ErrCodeExpired
		}
		return nil, err
	}

	userID, err := etsy.ParseUserID(grant.AccessToken)
	if err != nil {
		return nil, err
	}

	rec := &model.TokenRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    s.nowFunc().Add(time.Duration(grant.ExpiresIn) * time.Second),
		UserID:       userID,
	}
	if err := s.tokens.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("shop connected", zap.String("user_id", userID))
	return rec, nil
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

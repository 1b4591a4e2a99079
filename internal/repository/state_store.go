package repository

import (
	"context"
	"time"
)

// StateStore abstracts the durable key-value state shared across invocations:
// the Etsy token record ("etsy_tokens"), rate-limiter counters
// ("etsy_rate_limit"), and transient OAuth handshake entries
// ("oauth_state_<state>"). Implementations: Redis (production) or in-memory
// (tests / single-instance local runs). Get returns (nil, nil) on a miss.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Keys for the single-credential state this service owns.
const (
	KeyTokens        = "etsy_tokens"
	KeyRateLimit     = "etsy_rate_limit"
	KeyOAuthStatePre = "oauth_state_"
)

// OAuthStateKey builds the handshake key for a state token.
func OAuthStateKey(state string) string {
	return KeyOAuthStatePre + state
}

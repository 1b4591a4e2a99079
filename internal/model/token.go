package model

import "time"

// TokenRecord is the Etsy OAuth token pair persisted in the state store
// under the "etsy_tokens" key. ExpiresAt always reflects the current access
// token; a refresh replaces all three of access/refresh/expiry as one write.
// The record is owned by the token manager; other components must go
// through it rather than reading the key directly.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	ShopID       string    `json:"shop_id,omitempty"`
}

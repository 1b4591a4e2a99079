package model

import "time"

// HandshakeState is the short-lived PKCE handshake record persisted under
// "oauth_state_<state>" between the authorize redirect and the callback.
// It is consumed exactly once; the callback deletes it on every exit path.
type HandshakeState struct {
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

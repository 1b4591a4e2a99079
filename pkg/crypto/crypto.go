package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// GenerateRandomString produces a cryptographically random base64url string of n bytes.
func GenerateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateStateToken generates a random hex state token (16 bytes = 32 chars).
func GenerateStateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateCodeVerifier generates a PKCE code verifier (64 bytes = 86 chars
// base64url, inside the 43-128 unreserved-set bound of RFC 7636).
func GenerateCodeVerifier() (string, error) {
	return GenerateRandomString(64)
}

// CodeChallengeS256 derives the S256 code challenge for a verifier:
// base64url(sha256(verifier)), no padding.
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashContent returns a hex BLAKE2b-256 digest of content, used as an opaque
// validator for conditional requests against generated feeds.
func HashContent(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

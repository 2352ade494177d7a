// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"os"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/equitydesk/captable-backend/internal/api/response"
)

// timeTokenTTL is how long a time token stays valid. Tokens are minted per
// request by trusted internal callers, so the window is short.
const timeTokenTTL = 60 * time.Second

// fernetKey derives a fernet key from the shared API key. Fernet wants 32
// url-safe base64 bytes; hashing gets us there from an arbitrary secret.
func fernetKey(apiKey string) (*fernet.Key, error) {
	digest := sha256.Sum256([]byte(apiKey))
	return fernet.DecodeKey(base64.URLEncoding.EncodeToString(digest[:]))
}

// GenerateTimeToken mints a fernet token proving the caller held the API key
// at the current time. Internal jobs attach it as X-Time-Token.
func GenerateTimeToken(apiKey string) string {
	key, err := fernetKey(apiKey)
	if err != nil {
		return ""
	}
	token, err := fernet.EncryptAndSign([]byte(time.Now().UTC().Format(time.RFC3339)), key)
	if err != nil {
		return ""
	}
	return string(token)
}

// APIKeyMiddleware guards internal endpoints with the shared key from the
// INTERNAL_API_KEY environment variable. Callers present the key itself in
// X-API-Key and a fresh fernet time token in X-Time-Token; replaying an old
// token fails once the TTL passes.
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := os.Getenv("INTERNAL_API_KEY")
		if expected == "" {
			response.RespondError(w, http.StatusInternalServerError, "internal configuration error", "Authentication not loaded")
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expected)) != 1 {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
			return
		}

		timeToken := r.Header.Get("X-Time-Token")
		if timeToken == "" {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing Time token")
			return
		}
		key, err := fernetKey(expected)
		if err != nil {
			response.RespondError(w, http.StatusInternalServerError, "internal configuration error", "Authentication not loaded")
			return
		}
		if fernet.VerifyAndDecrypt([]byte(timeToken), timeTokenTTL, []*fernet.Key{key}) == nil {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Time token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r)
	})
}

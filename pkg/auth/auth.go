// Package auth verifies the signed-actor headers. Frontend callers
// must present X-User-ID plus an HMAC-SHA256 X-User-Signature computed
// over the user id with one of the configured signing keys; backend
// callers may assert an actor with the header alone.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"causerie/pkg/config"
	"causerie/pkg/logger"
)

type ctxActorKey struct{}

// RequireSignedActor verifies the signature headers and injects the
// verified actor id into the request context.
func RequireSignedActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role-Name")
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		// Backend callers are trusted: the header-provided actor is
		// accepted without a signature. A present signature is still
		// verified below.
		if role == "backend" && sig == "" {
			if userID != "" {
				r = r.WithContext(context.WithValue(r.Context(), ctxActorKey{}, userID))
			}
			next.ServeHTTP(w, r)
			return
		}

		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"missing signature headers"}`, http.StatusUnauthorized)
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			http.Error(w, `{"error":"server misconfigured: no signing secrets available"}`, http.StatusInternalServerError)
			return
		}

		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxActorKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorIDFromContext returns the verified actor id or empty string.
func ActorIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxActorKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Sign computes the hex HMAC-SHA256 of the user id with the given key.
// Used by tests and by backends issuing signatures to their clients.
func Sign(key, userID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

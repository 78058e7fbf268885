// ABOUTME: HTTP middleware resolving bearer tokens into request identities
// ABOUTME: Anonymous requests continue without identity; handlers decide what that means

package auth

import (
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", false
	}
	return token, true
}

// Middleware attempts to resolve the caller's identity from the
// Authorization header and attaches it to the request context. Requests
// without a valid token continue anonymously: mutations then fail with
// ErrUnauthorized in the service layer while queries return empty
// results. That asymmetry is the contract, so the middleware itself
// never rejects a request.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

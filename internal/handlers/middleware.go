package handlers

import (
	"context"
	"net/http"

	"github.com/vacationfavorites/apiserver/types"
)

// Guard authenticates bearer tokens and authorizes admin calls.
type Guard interface {
	Authenticate(authorization string) (types.Identity, error)
	AuthorizeAdmin(ctx context.Context, identity types.Identity) error
}

// RequireAuth resolves the bearer token and stores the caller's identity in
// the request context.
func RequireAuth(guard Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := guard.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(guard Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if err := guard.AuthorizeAdmin(r.Context(), identity); err != nil {
				writeServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

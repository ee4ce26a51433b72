package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/logging"
)

type identityKey struct{}

func withIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// identityFrom returns the identity stored by RequireAuth.
func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// RequireAuth authenticates the access token from the accessToken cookie or
// the Authorization bearer header before calling next.
func RequireAuth(guard Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := accessTokenFrom(r)
			if token == "" {
				respondError(ctx, w, apperr.Unauthorized("unauthorized request"))
				return
			}

			identity, err := guard.Authenticate(ctx, token)
			if err != nil {
				respondError(ctx, w, err)
				return
			}

			logger := logging.FromContext(ctx).With("user_id", identity.UserID)
			ctx = logging.WithLogger(withIdentity(ctx, identity), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(accessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// mustIdentity fetches the identity placed by RequireAuth. Routes that call it
// are always registered behind RequireAuth.
func mustIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(r.Context(), w, apperr.Unauthorized("unauthorized request"))
	}
	return id, ok
}

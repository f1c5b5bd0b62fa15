package api

import (
	"context"
	"net/http"

	"github.com/windward/autoflight/internal/auth"
)

type ctxKey int

const claimsCtxKey ctxKey = iota

// RequireAuth guards a route group with a bearer token, accepted from
// either the Authorization header or a "token" query parameter (the
// latter for the broadcast WebSocket, which cannot set headers).
func RequireAuth(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractToken(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
			if token == "" {
				jsonError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := authSvc.ValidateToken(token)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), claimsCtxKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

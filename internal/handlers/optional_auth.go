package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/tunahanclrr/salon-api/libs/auth"
	"github.com/tunahanclrr/salon-api/libs/httpx"
)

// OptionalAuth attaches claims when a valid bearer token is present but lets
// anonymous requests through. Used on registration so the first account can
// bootstrap the owner while later ones require an elevated caller.
func OptionalAuth(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if ok && strings.TrimSpace(token) != "" {
				claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), secret)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

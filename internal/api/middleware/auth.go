package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pbparthas/enki/internal/api"
	"github.com/pbparthas/enki/internal/domain"
)

type contextKey string

const APIKeyKey contextKey = "api_key"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (*domain.APIKey, error)
}

// APIKeyAuth authenticates requests with a Bearer token and attaches
// the resolved key record to the request context.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			key, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), APIKeyKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireReviewer gates a route tree behind the reviewer role. Agent
// keys can stage candidates and search; promotion, discard, flagging
// and export stay out of their reach.
func RequireReviewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := GetAPIKey(r.Context())
		if key == nil || !key.CanReview() {
			api.Error(w, http.StatusForbidden, "reviewer role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetAPIKey returns the authenticated key record, or nil.
func GetAPIKey(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(APIKeyKey).(*domain.APIKey)
	return key
}

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/domain"
)

type contextKey string

const (
	// UserKey is the context key for the authenticated user.
	UserKey contextKey = "user"
	// ClaimsKey is the context key for the token claims.
	ClaimsKey contextKey = "claims"
)

// UserLoader resolves the subject of a token to a live user.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// TokenFromRequest returns the bearer token of r. The Authorization header
// wins over the access token cookie.
func TokenFromRequest(r *http.Request) string {
	if token, ok := httputil.BearerToken(r); ok {
		return token
	}
	if token, ok := httputil.GetAccessTokenFromCookie(r); ok {
		return token
	}
	return ""
}

// Auth creates middleware that validates access tokens and loads the user.
// A token whose user no longer exists is rejected.
func Auth(tokens *auth.TokenService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.ValidateAccessToken(TokenFromRequest(r))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				httputil.WriteError(w, domain.ErrInvalidToken)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if errors.Is(err, domain.ErrUserNotFound) {
				httputil.WriteError(w, domain.ErrInvalidToken)
				return
			}
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the authenticated user from the request context.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	user, ok := GetUser(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return user.ID, true
}

// GetClaims extracts the token claims from the request context.
func GetClaims(ctx context.Context) (*auth.AccessTokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.AccessTokenClaims)
	return claims, ok
}

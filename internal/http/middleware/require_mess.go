package middleware

import (
	"net/http"

	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/domain"
)

// RequireMess rejects users that are not part of a mess.
// Must be used after Auth middleware.
func RequireMess() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				httputil.WriteError(w, domain.ErrMissingToken)
				return
			}
			if user.CurrentMessID == nil {
				httputil.WriteError(w, domain.ErrNotInMess)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMessAdmin rejects users that do not administer their mess.
// Must be used after RequireMess.
func RequireMessAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				httputil.WriteError(w, domain.ErrMissingToken)
				return
			}
			if user.CurrentMessID == nil || !user.IsMessAdmin {
				httputil.WriteError(w, domain.ErrMessAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

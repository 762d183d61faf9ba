package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/utils"
)

// TokenAuthenticator is satisfied by *Service.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

func JWTMiddleware(authenticator TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				utils.BuildErrorResponse(w, http.StatusUnauthorized, "Authorization required", nil)
				return
			}

			usr, err := authenticator.Authenticate(r.Context(), strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
			if err != nil {
				if apperr.KindOf(err) != apperr.KindUnauthorized {
					utils.RespondError(w, err)
					return
				}
				utils.BuildErrorResponse(w, http.StatusUnauthorized, "Invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), utils.UserKey, *usr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after JWTMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usr, ok := r.Context().Value(utils.UserKey).(user.User)
		if !ok {
			utils.BuildErrorResponse(w, http.StatusUnauthorized, "Authorization required", nil)
			return
		}
		if !usr.IsAdmin() {
			utils.BuildErrorResponse(w, http.StatusForbidden, "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

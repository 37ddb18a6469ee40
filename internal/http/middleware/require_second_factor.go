package middleware

import (
	"net/http"

	"github.com/opencampus/registrar/internal/httputil"
)

// RequireSecondFactor gates sensitive endpoints behind second-factor
// verification. It must be applied after Auth. Sessions minted before
// the account enrolled its second factor do not carry the verified
// claim, so this closes the window where such a session could disable
// the factor. Accounts without a second factor pass through.
//
// Example usage:
//
//	r.With(middleware.Auth(sessionService)).
//	  With(middleware.RequireSecondFactor()).
//	  Post("/v1/me/second-factor/disable", handler.Disable)
func RequireSecondFactor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, ok := GetAccount(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if account.SecondFactorEnabled {
				claims, ok := GetClaims(r.Context())
				if !ok || !claims.SecondFactor {
					httputil.Error(w, http.StatusForbidden, "second-factor verification required for this operation")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

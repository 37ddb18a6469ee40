package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
)

type contextKey string

const (
	// AccountIDKey is the context key for the authenticated account ID.
	AccountIDKey contextKey = "account_id"
	// AccountKey is the context key for the authenticated account.
	AccountKey contextKey = "account"
	// ClaimsKey is the context key for the session claims.
	ClaimsKey contextKey = "claims"
)

// SessionValidator validates a bearer token and resolves the account
// behind it. *auth.SessionService satisfies it.
type SessionValidator interface {
	Validate(ctx context.Context, tokenString string) (*auth.SessionClaims, *domain.Account, error)
}

// Auth creates middleware that validates bearer session tokens. The
// account's active and lock state are re-checked on every request; a
// token alone never carries that freshness.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenString = parts[1]
				}
			}

			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			claims, account, err := sessions.Validate(r.Context(), tokenString)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrAccountInactive):
					httputil.Error(w, http.StatusForbidden, "account is inactive")
				case errors.Is(err, domain.ErrAccountLocked):
					httputil.Error(w, http.StatusForbidden, "account is locked")
				default:
					httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, account.ID)
			ctx = context.WithValue(ctx, AccountKey, account)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID extracts the account ID from the request context.
func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(AccountIDKey).(uuid.UUID)
	return id, ok
}

// GetAccount extracts the authenticated account from the request context.
func GetAccount(ctx context.Context) (*domain.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*domain.Account)
	return account, ok
}

// GetClaims extracts the session claims from the request context.
func GetClaims(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.SessionClaims)
	return claims, ok
}

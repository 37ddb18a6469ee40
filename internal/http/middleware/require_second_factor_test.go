package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
)

func TestRequireSecondFactor(t *testing.T) {
	tests := []struct {
		name           string
		account        *domain.Account
		claims         *auth.SessionClaims
		expectedStatus int
		expectNext     bool
	}{
		{
			name:           "no authenticated account",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "factor enabled, session verified",
			account:        &domain.Account{ID: uuid.New(), SecondFactorEnabled: true},
			claims:         &auth.SessionClaims{SecondFactor: true},
			expectedStatus: http.StatusOK,
			expectNext:     true,
		},
		{
			name:           "factor enabled, session minted before enrollment",
			account:        &domain.Account{ID: uuid.New(), SecondFactorEnabled: true},
			claims:         &auth.SessionClaims{SecondFactor: false},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "factor enabled, no claims in context",
			account:        &domain.Account{ID: uuid.New(), SecondFactorEnabled: true},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "factor not enabled",
			account:        &domain.Account{ID: uuid.New(), SecondFactorEnabled: false},
			claims:         &auth.SessionClaims{SecondFactor: false},
			expectedStatus: http.StatusOK,
			expectNext:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := RequireSecondFactor()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/v1/me/second-factor/disable", nil)
			ctx := req.Context()
			if tt.account != nil {
				ctx = context.WithValue(ctx, AccountKey, tt.account)
			}
			if tt.claims != nil {
				ctx = context.WithValue(ctx, ClaimsKey, tt.claims)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req.WithContext(ctx))

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}
			if called != tt.expectNext {
				t.Errorf("next called = %v, want %v", called, tt.expectNext)
			}
		})
	}
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

var testJWTSecret = []byte("test-jwt-secret-for-unit-tests")

func testSessionService() *SessionService {
	return NewSessionService(SessionConfig{
		JWTSecret: testJWTSecret,
		Issuer:    "registrar-test",
	}, nil, nil)
}

func signTestToken(t *testing.T, key []byte, method jwt.SigningMethod, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	var signKey any = key
	if method == jwt.SigningMethodNone {
		signKey = jwt.UnsafeAllowNoneSignatureType
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func testClaims(expiresAt time.Time) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "registrar-test",
			ID:        uuid.NewString(),
		},
		Handle:       "jdoe",
		Role:         "student",
		SecondFactor: true,
	}
}

func TestSessionService_ParseToken(t *testing.T) {
	service := testSessionService()
	claims := testClaims(time.Now().Add(time.Hour))
	signed := signTestToken(t, testJWTSecret, jwt.SigningMethodHS256, claims)

	parsed, err := service.ParseToken(signed)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if parsed.Subject != claims.Subject {
		t.Errorf("Subject = %q, want %q", parsed.Subject, claims.Subject)
	}
	if parsed.ID != claims.ID {
		t.Errorf("ID = %q, want %q", parsed.ID, claims.ID)
	}
	if parsed.Handle != "jdoe" {
		t.Errorf("Handle = %q, want %q", parsed.Handle, "jdoe")
	}
	if parsed.Role != "student" {
		t.Errorf("Role = %q, want %q", parsed.Role, "student")
	}
	if !parsed.SecondFactor {
		t.Error("SecondFactor claim should survive the round trip")
	}
}

func TestSessionService_ParseToken_Rejections(t *testing.T) {
	service := testSessionService()

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "expired",
			token: signTestToken(t, testJWTSecret, jwt.SigningMethodHS256, testClaims(time.Now().Add(-time.Minute))),
		},
		{
			name:  "wrong key",
			token: signTestToken(t, []byte("some-other-secret"), jwt.SigningMethodHS256, testClaims(time.Now().Add(time.Hour))),
		},
		{
			name:  "unsigned alg none",
			token: signTestToken(t, nil, jwt.SigningMethodNone, testClaims(time.Now().Add(time.Hour))),
		},
		{
			name:  "garbage",
			token: "not.a.token",
		},
		{
			name:  "empty",
			token: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ParseToken(tt.token)
			if !errors.Is(err, domain.ErrInvalidToken) {
				t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestSessionService_DefaultTTL(t *testing.T) {
	service := NewSessionService(SessionConfig{JWTSecret: testJWTSecret}, nil, nil)
	if service.TokenTTL() != DefaultSessionTokenTTL {
		t.Errorf("TokenTTL() = %v, want %v", service.TokenTTL(), DefaultSessionTokenTTL)
	}
}

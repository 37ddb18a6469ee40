package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
	"github.com/opencampus/registrar/pkg/repository"
)

// DefaultSessionTokenTTL is the default lifetime of an issued session.
const DefaultSessionTokenTTL = 7 * 24 * time.Hour

// SessionConfig holds session configuration. The signing key and expiry
// policy are process-wide, not per-call parameters.
type SessionConfig struct {
	TokenTTL  time.Duration
	JWTSecret []byte
	Issuer    string
}

// SessionClaims are the claims carried by a session token. The token
// binds the principal identifier and role; it carries no authorization
// freshness guarantees of its own.
type SessionClaims struct {
	jwt.RegisteredClaims
	Handle       string `json:"handle,omitempty"`
	Role         string `json:"role,omitempty"`
	SecondFactor bool   `json:"second_factor,omitempty"`
}

// SessionService mints and validates session tokens. Every issued token
// is backed by a session row so it can be revoked before expiry.
type SessionService struct {
	config   SessionConfig
	sessions *repository.SessionsRepository
	accounts *repository.AccountsRepository
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, sessions *repository.SessionsRepository, accounts *repository.AccountsRepository) *SessionService {
	if config.TokenTTL == 0 {
		config.TokenTTL = DefaultSessionTokenTTL
	}
	return &SessionService{
		config:   config,
		sessions: sessions,
		accounts: accounts,
	}
}

// TokenTTL returns the configured session token lifetime.
func (s *SessionService) TokenTTL() time.Duration {
	return s.config.TokenTTL
}

// IssueOpts holds options for session issuance.
type IssueOpts struct {
	Device       DeviceContext
	SecondFactor bool // whether the second factor was verified for this session
}

// Issue mints a signed, expiring token for an authenticated account and
// records the backing session.
func (s *SessionService) Issue(ctx context.Context, account *domain.Account, opts IssueOpts) (*domain.AuthToken, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)
	sessionID := uuid.New()

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    s.config.Issuer,
			ID:        sessionID.String(),
		},
		Handle:       account.Handle,
		Role:         string(account.Role),
		SecondFactor: opts.SecondFactor,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        sessionID,
		AccountID: account.ID,
		TokenHash: HashToken(signed),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if opts.Device.IP != "" || opts.Device.UserAgent != "" {
		metadata, _ := json.Marshal(domain.SessionMetadata{
			IP:           opts.Device.IP,
			UserAgent:    opts.Device.UserAgent,
			DeviceID:     Fingerprint(opts.Device),
			SecondFactor: opts.SecondFactor,
		})
		session.Metadata = metadata
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &domain.AuthToken{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int(s.config.TokenTTL.Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates signature and expiry and returns the claims.
func (s *SessionService) ParseToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// Validate checks a bearer token end to end: signature and expiry, the
// backing session row, and the current account state. A token is not
// proof of a still-usable account, so IsActive and the lock are
// re-checked on every use.
func (s *SessionService) Validate(ctx context.Context, tokenString string) (*SessionClaims, *domain.Account, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, nil, domain.ErrInvalidToken
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !session.IsValid() {
		if session.RevokedAt != nil {
			return nil, nil, domain.ErrSessionRevoked
		}
		return nil, nil, domain.ErrSessionExpired
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if !account.IsActive {
		return nil, nil, domain.ErrAccountInactive
	}
	if EvaluateLock(account.IsLocked, account.LockedUntil, time.Now()) == LockActive {
		return nil, nil, domain.ErrAccountLocked
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID)

	return claims, account, nil
}

// Revoke revokes the session behind a token.
func (s *SessionService) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return domain.ErrInvalidToken
	}
	return s.sessions.Revoke(ctx, sessionID)
}

// RevokeAll revokes every session for an account.
func (s *SessionService) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	return s.sessions.RevokeAllByAccountID(ctx, accountID)
}

package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/internal/http/middleware"
	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
)

// Handler handles login and session endpoints.
type Handler struct {
	logger   *slog.Logger
	login    *auth.LoginService
	sessions *auth.SessionService
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, login *auth.LoginService, sessions *auth.SessionService) *Handler {
	return &Handler{
		logger:   logger,
		login:    login,
		sessions: sessions,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// PrincipalResponse identifies the authenticated account.
type PrincipalResponse struct {
	ID     uuid.UUID `json:"id"`
	Handle string    `json:"handle"`
	Role   string    `json:"role"`
}

// TokenResponse represents an issued session.
type TokenResponse struct {
	Token     string            `json:"token"`
	TokenType string            `json:"token_type"`
	ExpiresIn int               `json:"expires_in"`
	ExpiresAt time.Time         `json:"expires_at"`
	Principal PrincipalResponse `json:"principal"`
}

// ChallengeResponse tells the client a one-time code is still required.
type ChallengeResponse struct {
	SecondFactorRequired bool      `json:"second_factor_required"`
	AccountID            uuid.UUID `json:"account_id"`
	DeviceFingerprint    string    `json:"device_fingerprint"`
	SuggestedDeviceName  string    `json:"suggested_device_name"`
}

// Login handles user login.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Handle == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "handle and password are required")
		return
	}

	dev := auth.DeviceContextFromRequest(r)
	result, err := h.login.Login(r.Context(), req.Handle, req.Password, dev)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	if result.Challenge != nil {
		httputil.JSON(w, http.StatusOK, ChallengeResponse{
			SecondFactorRequired: true,
			AccountID:            result.Challenge.AccountID,
			DeviceFingerprint:    result.Challenge.DeviceID,
			SuggestedDeviceName:  result.Challenge.SuggestedDeviceName,
		})
		return
	}

	h.writeTokenResponse(w, result)
}

// VerifyRequest represents a second-factor verification request.
type VerifyRequest struct {
	AccountID   uuid.UUID `json:"account_id"`
	Code        string    `json:"code"`
	TrustDevice bool      `json:"trust_device"`
}

// VerifySecondFactor completes a login that required a one-time code.
// POST /v1/auth/second-factor/verify
func (h *Handler) VerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AccountID == uuid.Nil || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "account_id and code are required")
		return
	}

	dev := auth.DeviceContextFromRequest(r)
	result, err := h.login.CompleteSecondFactor(r.Context(), req.AccountID, req.Code, req.TrustDevice, dev)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSecondFactorCode),
			errors.Is(err, domain.ErrSecondFactorNotConfigured):
			httputil.Error(w, http.StatusUnauthorized, "invalid second-factor code")
		case errors.Is(err, domain.ErrAccountNotFound):
			httputil.Error(w, http.StatusNotFound, "account not found")
		case errors.Is(err, domain.ErrAccountInactive):
			httputil.Error(w, http.StatusForbidden, "account is inactive")
		default:
			h.logger.Error("second-factor verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	h.writeTokenResponse(w, result)
}

// Logout revokes the presented session.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httputil.Error(w, http.StatusBadRequest, "missing bearer token")
		return
	}

	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			httputil.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		h.logger.Error("failed to revoke session", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// LogoutAll revokes every session for the authenticated account.
// POST /v1/auth/logout/all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), accountID); err != nil {
		h.logger.Error("failed to revoke sessions", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "all sessions revoked"})
}

func (h *Handler) writeTokenResponse(w http.ResponseWriter, result *auth.LoginResult) {
	httputil.JSON(w, http.StatusOK, TokenResponse{
		Token:     result.Token.Token,
		TokenType: result.Token.TokenType,
		ExpiresIn: result.Token.ExpiresIn,
		ExpiresAt: result.Token.ExpiresAt,
		Principal: PrincipalResponse{
			ID:     result.Account.ID,
			Handle: result.Account.Handle,
			Role:   string(result.Account.Role),
		},
	})
}

// writeLoginError maps login failures. Unknown handle and wrong password
// produce the identical response, to avoid account enumeration.
func (h *Handler) writeLoginError(w http.ResponseWriter, err error) {
	var lockErr *domain.AccountLockedError
	var credErr *domain.InvalidCredentialsError

	switch {
	case errors.As(err, &lockErr):
		httputil.JSON(w, http.StatusForbidden, map[string]any{
			"error":        "account temporarily locked due to too many failed login attempts",
			"locked_until": lockErr.Until,
		})
	case errors.As(err, &credErr):
		httputil.JSON(w, http.StatusUnauthorized, map[string]any{
			"error":              "invalid handle or password",
			"remaining_attempts": credErr.RemainingAttempts,
		})
	case errors.Is(err, domain.ErrInvalidCredentials):
		httputil.Error(w, http.StatusUnauthorized, "invalid handle or password")
	case errors.Is(err, domain.ErrAccountLocked):
		httputil.Error(w, http.StatusForbidden, "account temporarily locked due to too many failed login attempts")
	case errors.Is(err, domain.ErrAccountInactive):
		httputil.Error(w, http.StatusForbidden, "account is inactive")
	default:
		h.logger.Error("login failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "authentication failed")
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

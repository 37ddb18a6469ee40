package me

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/opencampus/registrar/internal/http/middleware"
	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
)

// Handler serves the authenticated account's own record.
type Handler struct {
	logger   *slog.Logger
	accounts *auth.AccountService
	sessions *auth.SessionService
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService, sessions *auth.SessionService) *Handler {
	return &Handler{logger: logger, accounts: accounts, sessions: sessions}
}

// MeResponse represents the account plus its role profile.
type MeResponse struct {
	ID                  string     `json:"id"`
	Handle              string     `json:"handle"`
	Role                string     `json:"role"`
	DisplayName         string     `json:"display_name"`
	Program             string     `json:"program,omitempty"`
	Department          string     `json:"department,omitempty"`
	SecondFactorEnabled bool       `json:"second_factor_enabled"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Get returns the authenticated account.
// GET /v1/me
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.accounts.GetProfile(r.Context(), account)
	if err != nil {
		h.logger.Error("failed to load profile", "error", err, "account_id", account.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	httputil.JSON(w, http.StatusOK, MeResponse{
		ID:                  account.ID.String(),
		Handle:              account.Handle,
		Role:                string(account.Role),
		DisplayName:         profile.DisplayName,
		Program:             profile.Program,
		Department:          profile.Department,
		SecondFactorEnabled: account.SecondFactorEnabled,
		LastLoginAt:         account.LastLoginAt,
		CreatedAt:           account.CreatedAt,
	})
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the authenticated account's password. All
// sessions are revoked afterwards, including the one making the
// request, so the client must log in again.
// POST /v1/me/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "current password is required")
		return
	}
	if req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "new password is required")
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "current password is incorrect")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to change password", "error", err, "account_id", accountID)
			httputil.Error(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), accountID); err != nil {
		h.logger.Error("failed to revoke sessions", "error", err, "account_id", accountID)
		// Don't fail the request since the password was already changed
	}

	h.logger.Info("password changed", "account_id", accountID)

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "password changed, all sessions revoked"})
}

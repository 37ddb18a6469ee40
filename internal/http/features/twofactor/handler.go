package twofactor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opencampus/registrar/internal/http/middleware"
	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
)

// Handler handles second-factor enrollment for the authenticated account.
type Handler struct {
	logger        *slog.Logger
	secondFactors *auth.SecondFactorService
}

// NewHandler creates a new second-factor handler.
func NewHandler(logger *slog.Logger, secondFactors *auth.SecondFactorService) *Handler {
	return &Handler{logger: logger, secondFactors: secondFactors}
}

// SetupResponse carries the provisioning material for an authenticator app.
type SetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"`
}

// Setup generates a fresh secret and returns it for enrollment.
// POST /v1/me/second-factor/setup
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	setup, err := h.secondFactors.BeginSetup(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrSecondFactorAlreadyEnabled) {
			httputil.Error(w, http.StatusConflict, "second factor is already enabled")
			return
		}
		h.logger.Error("second-factor setup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "setup failed")
		return
	}

	httputil.JSON(w, http.StatusOK, SetupResponse{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
		QRCode:          setup.QRCodeDataURI,
	})
}

// ConfirmRequest carries the code proving the authenticator was enrolled.
type ConfirmRequest struct {
	Code string `json:"code"`
}

// Confirm validates the first code and turns the second factor on.
// POST /v1/me/second-factor/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.secondFactors.ConfirmSetup(r.Context(), accountID, req.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSecondFactorCode):
			httputil.Error(w, http.StatusBadRequest, "invalid code")
		case errors.Is(err, domain.ErrSecondFactorNotConfigured):
			httputil.Error(w, http.StatusBadRequest, "second-factor setup has not been started")
		default:
			h.logger.Error("second-factor confirmation failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "confirmation failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "second factor enabled"})
}

// DisableRequest requires both the password and a current code.
type DisableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Disable turns the second factor off and forgets all trusted devices.
// POST /v1/me/second-factor/disable
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req DisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "password and code are required")
		return
	}

	if err := h.secondFactors.Disable(r.Context(), accountID, req.Password, req.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "invalid password")
		case errors.Is(err, domain.ErrInvalidSecondFactorCode):
			httputil.Error(w, http.StatusUnauthorized, "invalid code")
		case errors.Is(err, domain.ErrSecondFactorNotConfigured):
			httputil.Error(w, http.StatusBadRequest, "second factor is not enabled")
		default:
			h.logger.Error("second-factor disable failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "disable failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "second factor disabled"})
}

// StatusResponse reports the enrollment state of the second factor.
type StatusResponse struct {
	Enabled bool `json:"enabled"`
	Pending bool `json:"pending"`
}

// Status reports whether the second factor is enabled or mid-setup.
// GET /v1/me/second-factor
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	enabled, pending, err := h.secondFactors.Status(r.Context(), accountID)
	if err != nil {
		h.logger.Error("second-factor status lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "status lookup failed")
		return
	}

	httputil.JSON(w, http.StatusOK, StatusResponse{Enabled: enabled, Pending: pending})
}

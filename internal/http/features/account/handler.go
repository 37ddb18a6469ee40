package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
)

// Handler handles account registration.
type Handler struct {
	logger   *slog.Logger
	accounts *auth.AccountService
}

// NewHandler creates a new account handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService) *Handler {
	return &Handler{logger: logger, accounts: accounts}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// RegisterResponse represents a created account.
type RegisterResponse struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Role   string `json:"role"`
}

// Register handles account creation.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Handle == "" || req.Password == "" || req.Role == "" {
		httputil.Error(w, http.StatusBadRequest, "handle, password and role are required")
		return
	}

	acct, err := h.accounts.Register(r.Context(), req.Handle, req.Password, req.Name, domain.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountExists):
			httputil.Error(w, http.StatusConflict, "handle already taken")
		case errors.Is(err, domain.ErrInvalidHandle):
			httputil.Error(w, http.StatusBadRequest, "invalid handle format: must be 3-30 characters, alphanumeric/underscore/hyphen, start with alphanumeric")
		case errors.Is(err, domain.ErrUnknownRole):
			httputil.Error(w, http.StatusBadRequest, "unknown role")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		ID:     acct.ID.String(),
		Handle: acct.Handle,
		Role:   string(acct.Role),
	})
}

package devices

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opencampus/registrar/internal/http/middleware"
	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
)

// Handler handles the trusted-device list for the authenticated account.
type Handler struct {
	logger  *slog.Logger
	devices *auth.DeviceService
}

// NewHandler creates a new devices handler.
func NewHandler(logger *slog.Logger, devices *auth.DeviceService) *Handler {
	return &Handler{logger: logger, devices: devices}
}

// DeviceResponse represents one trusted device.
type DeviceResponse struct {
	DeviceID    string    `json:"device_id"`
	DisplayName string    `json:"display_name"`
	OriginIP    string    `json:"origin_ip"`
	LastUsedAt  time.Time `json:"last_used_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// List returns every device trusted to skip the second factor.
// GET /v1/me/devices
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.devices.List(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to list trusted devices", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list devices")
		return
	}

	resp := make([]DeviceResponse, 0, len(list))
	for _, d := range list {
		resp = append(resp, DeviceResponse{
			DeviceID:    d.DeviceID,
			DisplayName: d.DisplayName,
			OriginIP:    d.OriginIP,
			LastUsedAt:  d.LastUsedAt,
			CreatedAt:   d.CreatedAt,
		})
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"devices": resp})
}

// Revoke removes a trusted device so it must pass the second factor again.
// DELETE /v1/me/devices/{deviceID}
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" {
		httputil.Error(w, http.StatusBadRequest, "device id is required")
		return
	}

	if err := h.devices.Revoke(r.Context(), accountID, deviceID); err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			httputil.Error(w, http.StatusNotFound, "device not found")
			return
		}
		h.logger.Error("failed to revoke trusted device", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to revoke device")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "device revoked"})
}

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
	"github.com/opencampus/registrar/pkg/repository"
)

// deviceNamespace is the UUIDv5 namespace for device fingerprints. The
// fingerprint is a stable identifier, not a secret: anyone who knows a
// client's user agent and address can recompute it.
var deviceNamespace = uuid.MustParse("f3b4a6a0-9c7e-4d52-8d1f-2b8563d0a1c4")

// DeviceContext is the raw client metadata a request carries.
type DeviceContext struct {
	IP        string
	UserAgent string
}

// DeviceContextFromRequest extracts client metadata from an HTTP request.
func DeviceContextFromRequest(r *http.Request) DeviceContext {
	return DeviceContext{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// Fingerprint derives a deterministic device identifier from the
// client's declared user agent and observed network origin. Two
// browsers with similar user agents behind the same address collide;
// that is an accepted limitation of the mechanism.
func Fingerprint(dev DeviceContext) string {
	return uuid.NewSHA1(deviceNamespace, []byte(dev.UserAgent+"|"+dev.IP)).String()
}

// DeviceName derives a best-effort human-readable label from coarse
// user-agent matching. Advisory text only, never a security input.
func DeviceName(userAgent string) string {
	browser := browserFamily(userAgent)
	os := osFamily(userAgent)

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	}
	return "Unknown device"
}

func browserFamily(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"), strings.Contains(ua, "Edge/"):
		return "Edge"
	case strings.Contains(ua, "OPR/"), strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Chrome/"), strings.Contains(ua, "CriOS/"):
		return "Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	}
	return ""
}

func osFamily(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	}
	return ""
}

// clientIP extracts the client IP address from the request. Checks
// X-Forwarded-For and X-Real-IP headers before falling back to
// RemoteAddr.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// RemoteAddr format is "IP:port"
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// DeviceService exposes the trusted-device list to account management.
type DeviceService struct {
	devices *repository.TrustedDevicesRepository
}

// NewDeviceService creates a new device service.
func NewDeviceService(devices *repository.TrustedDevicesRepository) *DeviceService {
	return &DeviceService{devices: devices}
}

// List returns the account's trusted devices in insertion order.
func (s *DeviceService) List(ctx context.Context, accountID uuid.UUID) ([]*domain.TrustedDevice, error) {
	return s.devices.ListByAccountID(ctx, accountID)
}

// Revoke removes one trusted device.
func (s *DeviceService) Revoke(ctx context.Context, accountID uuid.UUID, deviceID string) error {
	return s.devices.Delete(ctx, accountID, deviceID)
}

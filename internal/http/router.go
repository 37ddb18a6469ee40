package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opencampus/registrar/internal/config"
	"github.com/opencampus/registrar/internal/http/features/account"
	"github.com/opencampus/registrar/internal/http/features/devices"
	"github.com/opencampus/registrar/internal/http/features/me"
	"github.com/opencampus/registrar/internal/http/features/session"
	"github.com/opencampus/registrar/internal/http/features/twofactor"
	"github.com/opencampus/registrar/internal/http/middleware"
	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	AccountService      *auth.AccountService
	LoginService        *auth.LoginService
	SessionService      *auth.SessionService
	SecondFactorService *auth.SecondFactorService
	DeviceService       *auth.DeviceService
	RateLimitConfig     config.RateLimitConfig
	SecurityHeaders     config.SecurityHeadersConfig
	MaxRequestBodySize  int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	requireAuth := middleware.Auth(cfg.SessionService)

	// Credential endpoints share the strict limiter: a throttled client
	// cannot brute-force one-time codes within their validity window.
	accountHandler := account.NewHandler(cfg.Logger, cfg.AccountService)
	sessionHandler := session.NewHandler(cfg.Logger, cfg.LoginService, cfg.SessionService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/register", accountHandler.Register)
		r.Post("/v1/auth/login", sessionHandler.Login)
		r.Post("/v1/auth/second-factor/verify", sessionHandler.VerifySecondFactor)
	})
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(requireAuth).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)

	// Self-service routes for the authenticated account
	meHandler := me.NewHandler(cfg.Logger, cfg.AccountService, cfg.SessionService)
	twoFactorHandler := twofactor.NewHandler(cfg.Logger, cfg.SecondFactorService)
	devicesHandler := devices.NewHandler(cfg.Logger, cfg.DeviceService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["profile"])
		r.Use(requireAuth)
		r.Get("/v1/me", meHandler.Get)
		r.Post("/v1/me/password", meHandler.ChangePassword)
		r.Get("/v1/me/second-factor", twoFactorHandler.Status)
		r.Post("/v1/me/second-factor/setup", twoFactorHandler.Setup)
		r.Post("/v1/me/second-factor/confirm", twoFactorHandler.Confirm)
		// Sessions minted before enrollment cannot disable the factor.
		r.With(middleware.RequireSecondFactor()).Post("/v1/me/second-factor/disable", twoFactorHandler.Disable)
		r.Get("/v1/me/devices", devicesHandler.List)
		r.Delete("/v1/me/devices/{deviceID}", devicesHandler.Revoke)
	})

	return r
}

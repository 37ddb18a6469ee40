// Package registrar provides an embeddable authentication core for
// campus administration services: password login with progressive
// lockout, a TOTP second factor with trusted-device bypass, and
// revocable session tokens.
//
// Setup:
//
//  1. Create the accounts, account_credentials, account_second_factors,
//     trusted_devices and sessions tables
//  2. Create a Registrar instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/campus?sslmode=disable")
//
//	reg, err := registrar.New(registrar.Config{
//	    DB:                     db,
//	    JWTSecret:              "your-secret-key-at-least-32-chars",
//	    TwoFactorEncryptionKey: key, // 32 bytes
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if the schema is missing
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/auth", reg.Router())
//	http.ListenAndServe(":8080", r)
package registrar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/opencampus/registrar/internal/http/features/account"
	"github.com/opencampus/registrar/internal/http/features/devices"
	"github.com/opencampus/registrar/internal/http/features/me"
	"github.com/opencampus/registrar/internal/http/features/session"
	"github.com/opencampus/registrar/internal/http/features/twofactor"
	"github.com/opencampus/registrar/internal/http/middleware"
	"github.com/opencampus/registrar/internal/httputil"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
	"github.com/opencampus/registrar/pkg/profile"
	"github.com/opencampus/registrar/pkg/repository"
)

// Config holds the configuration for the embedded registrar core.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing session tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in session tokens (default: "registrar").
	JWTIssuer string

	// TokenTTL is the lifetime of session tokens (default: 7 days).
	TokenTTL time.Duration

	// TwoFactorIssuer is the label shown in authenticator apps (default: "Campus Registrar").
	TwoFactorIssuer string

	// TwoFactorEncryptionKey encrypts stored TOTP secrets (required, 32 bytes).
	TwoFactorEncryptionKey []byte

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Registrar is the embedded authentication instance.
type Registrar struct {
	config              Config
	db                  *sql.DB
	accountsRepo        *repository.AccountsRepository
	credsRepo           *repository.CredentialsRepository
	secondFactorsRepo   *repository.SecondFactorsRepository
	devicesRepo         *repository.TrustedDevicesRepository
	sessionsRepo        *repository.SessionsRepository
	accountService      *auth.AccountService
	loginService        *auth.LoginService
	sessionService      *auth.SessionService
	secondFactorService *auth.SecondFactorService
	deviceService       *auth.DeviceService
}

// New creates a new Registrar instance with the given configuration.
// Returns an error if the required database tables don't exist.
func New(cfg Config) (*Registrar, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	accountsRepo := repository.NewAccountsRepository(cfg.DB)
	credsRepo := repository.NewCredentialsRepository(cfg.DB)
	secondFactorsRepo := repository.NewSecondFactorsRepository(cfg.DB)
	devicesRepo := repository.NewTrustedDevicesRepository(cfg.DB)
	sessionsRepo := repository.NewSessionsRepository(cfg.DB)

	profiles := profile.NewRegistry(
		profile.NewStudentProvider(cfg.DB),
		profile.NewStaffProvider(cfg.DB, domain.RoleInstructor),
		profile.NewStaffProvider(cfg.DB, domain.RoleRegistrar),
	)

	accountService := auth.NewAccountService(cfg.DB, accountsRepo, credsRepo, profiles, auth.DefaultPasswordPolicy())
	sessionService := auth.NewSessionService(auth.SessionConfig{
		TokenTTL:  cfg.TokenTTL,
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
	}, sessionsRepo, accountsRepo)
	secondFactorService := auth.NewSecondFactorService(auth.SecondFactorConfig{
		Issuer:        cfg.TwoFactorIssuer,
		EncryptionKey: cfg.TwoFactorEncryptionKey,
	}, cfg.DB, secondFactorsRepo, accountsRepo, credsRepo, devicesRepo)
	loginService := auth.NewLoginService(
		cfg.Logger,
		accountsRepo,
		credsRepo,
		devicesRepo,
		secondFactorService,
		sessionService,
	)

	return &Registrar{
		config:              cfg,
		db:                  cfg.DB,
		accountsRepo:        accountsRepo,
		credsRepo:           credsRepo,
		secondFactorsRepo:   secondFactorsRepo,
		devicesRepo:         devicesRepo,
		sessionsRepo:        sessionsRepo,
		accountService:      accountService,
		loginService:        loginService,
		sessionService:      sessionService,
		secondFactorService: secondFactorService,
		deviceService:       auth.NewDeviceService(devicesRepo),
	}, nil
}

// Router returns a chi router with all auth routes.
// Mount this on your main router:
//
//	r := chi.NewRouter()
//	r.Mount("/auth", reg.Router())
//
// Routes:
//
//	POST /register              - Register with handle/password
//	POST /login                 - Login with handle/password
//	POST /second-factor/verify  - Complete a challenged login
//	POST /logout                - Logout (revoke session)
//	POST /logout/all            - Logout all sessions (protected)
//	GET  /me                    - Get current account (protected)
//	POST /me/password           - Change password (protected)
//	GET  /me/second-factor      - Second-factor status (protected)
//	POST /me/second-factor/setup    - Begin enrollment (protected)
//	POST /me/second-factor/confirm  - Confirm enrollment (protected)
//	POST /me/second-factor/disable  - Disable (protected)
//	GET  /me/devices            - List trusted devices (protected)
//	DELETE /me/devices/{deviceID}   - Revoke a trusted device (protected)
func (reg *Registrar) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)

	accountHandler := account.NewHandler(reg.config.Logger, reg.accountService)
	sessionHandler := session.NewHandler(reg.config.Logger, reg.loginService, reg.sessionService)
	r.Post("/register", accountHandler.Register)
	r.Post("/login", sessionHandler.Login)
	r.Post("/second-factor/verify", sessionHandler.VerifySecondFactor)
	r.Post("/logout", sessionHandler.Logout)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(reg.sessionService))

		r.Post("/logout/all", sessionHandler.LogoutAll)

		meHandler := me.NewHandler(reg.config.Logger, reg.accountService, reg.sessionService)
		twoFactorHandler := twofactor.NewHandler(reg.config.Logger, reg.secondFactorService)
		devicesHandler := devices.NewHandler(reg.config.Logger, reg.deviceService)
		r.Get("/me", meHandler.Get)
		r.Post("/me/password", meHandler.ChangePassword)
		r.Get("/me/second-factor", twoFactorHandler.Status)
		r.Post("/me/second-factor/setup", twoFactorHandler.Setup)
		r.Post("/me/second-factor/confirm", twoFactorHandler.Confirm)
		r.With(middleware.RequireSecondFactor()).Post("/me/second-factor/disable", twoFactorHandler.Disable)
		r.Get("/me/devices", devicesHandler.List)
		r.Delete("/me/devices/{deviceID}", devicesHandler.Revoke)
	})

	return r
}

// SessionService returns the session service for advanced usage.
func (reg *Registrar) SessionService() *auth.SessionService {
	return reg.sessionService
}

// AuthMiddleware returns middleware that validates session tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(reg.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (reg *Registrar) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(reg.sessionService)
}

// GetAccountID extracts the account ID from a request.
// Use after AuthMiddleware.
func GetAccountID(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetAccountID(r.Context())
}

// GetAccountIDFromContext extracts the account ID from a context.
func GetAccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetAccountID(ctx)
}

// Principal represents basic account info returned by GetAccount.
type Principal struct {
	ID     string
	Handle string
	Role   string
}

// GetAccount retrieves the current account from the request context.
// Use after AuthMiddleware.
func (reg *Registrar) GetAccount(r *http.Request) (*Principal, error) {
	a, ok := middleware.GetAccount(r.Context())
	if !ok {
		return nil, errors.New("registrar: not authenticated")
	}
	return &Principal{
		ID:     a.ID.String(),
		Handle: a.Handle,
		Role:   string(a.Role),
	}, nil
}

// HealthHandler returns a simple health check handler.
func (reg *Registrar) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Handler returns an http.Handler for mounting with http.StripPrefix.
// This is useful when using the standard library ServeMux:
//
//	mux := http.NewServeMux()
//	mux.Handle("/auth/", http.StripPrefix("/auth", reg.Handler()))
func (reg *Registrar) Handler() http.Handler {
	return reg.Router()
}

// Routes registers all auth routes on an http.ServeMux with the given prefix:
//
//	mux := http.NewServeMux()
//	reg.Routes(mux, "/api/v1/auth")
func (reg *Registrar) Routes(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/", http.StripPrefix(prefix, reg.Router()))
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("registrar: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("registrar: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("registrar: JWTSecret must be at least 32 characters")
	}
	if len(cfg.TwoFactorEncryptionKey) != 32 {
		return errors.New("registrar: TwoFactorEncryptionKey must be 32 bytes")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "registrar"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = auth.DefaultSessionTokenTTL
	}
	if cfg.TwoFactorIssuer == "" {
		cfg.TwoFactorIssuer = "Campus Registrar"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{
		"accounts",
		"account_credentials",
		"account_second_factors",
		"trusted_devices",
		"sessions",
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("registrar: missing table '%s' - create the schema first", table)
		}
		if err != nil {
			return fmt.Errorf("registrar: failed to check schema: %w", err)
		}
	}

	return nil
}

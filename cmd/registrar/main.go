package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opencampus/registrar/internal/config"
	httpserver "github.com/opencampus/registrar/internal/http"
	"github.com/opencampus/registrar/pkg/auth"
	"github.com/opencampus/registrar/pkg/domain"
	"github.com/opencampus/registrar/pkg/profile"
	"github.com/opencampus/registrar/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	accountsRepo := repository.NewAccountsRepository(db)
	credsRepo := repository.NewCredentialsRepository(db)
	secondFactorsRepo := repository.NewSecondFactorsRepository(db)
	devicesRepo := repository.NewTrustedDevicesRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)

	// Role profiles
	profiles := profile.NewRegistry(
		profile.NewStudentProvider(db),
		profile.NewStaffProvider(db, domain.RoleInstructor),
		profile.NewStaffProvider(db, domain.RoleRegistrar),
	)

	// Initialize services
	passwordPolicy := auth.DefaultPasswordPolicy()
	accountService := auth.NewAccountService(db, accountsRepo, credsRepo, profiles, passwordPolicy)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		TokenTTL:  cfg.SessionTokenTTL,
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
	}, sessionsRepo, accountsRepo)
	secondFactorService := auth.NewSecondFactorService(auth.SecondFactorConfig{
		Issuer:        cfg.TwoFactorIssuer,
		EncryptionKey: cfg.TwoFactorEncryptionKey,
	}, db, secondFactorsRepo, accountsRepo, credsRepo, devicesRepo)
	deviceService := auth.NewDeviceService(devicesRepo)
	loginService := auth.NewLoginService(
		logger,
		accountsRepo,
		credsRepo,
		devicesRepo,
		secondFactorService,
		sessionService,
	)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              logger,
		AccountService:      accountService,
		LoginService:        loginService,
		SessionService:      sessionService,
		SecondFactorService: secondFactorService,
		DeviceService:       deviceService,
		RateLimitConfig:     cfg.RateLimit,
		SecurityHeaders:     cfg.SecurityHeaders,
		MaxRequestBodySize:  cfg.MaxRequestBodySize,
	})

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/userapi/backend/internal/api"
	"github.com/userapi/backend/internal/auth"
	"github.com/userapi/backend/internal/config"
	"github.com/userapi/backend/internal/health"
	"github.com/userapi/backend/internal/logger"
	"github.com/userapi/backend/internal/metrics"
	"github.com/userapi/backend/internal/storage"
	"github.com/userapi/backend/internal/users"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "invalid configuration", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Output:      os.Stdout,
		Level:       logger.ParseLevel(cfg.LogLevel),
		StackTraces: !cfg.IsProduction(),
	})
	logger.SetDefault(log)

	if cfg.GeneratedSecret {
		log.Warn(ctx, "JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}
	if cfg.AdminEmail == "" {
		log.Warn(ctx, "ADMIN_EMAIL not set; admin routes are unreachable")
	}

	backends, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open storage", err, map[string]interface{}{
			"db_driver":   cfg.DBDriver,
			"token_store": cfg.TokenStore,
		})
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	userService := users.NewService(users.ServiceConfig{
		Store:      backends.Users,
		Sessions:   backends.Tokens,
		BcryptCost: cfg.BcryptCost,
		AdminEmail: cfg.AdminEmail,
		Logger:     log,
	})

	issuer := auth.NewTokenIssuer(auth.IssuerConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	verifier := auth.NewCredentialVerifier(backends.Users, auth.AdminCredentials{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	sessions := auth.NewSessionManager(auth.SessionConfig{
		Verifier: verifier,
		Issuer:   issuer,
		Store:    backends.Tokens,
		Observer: m,
		Logger:   log,
	})

	checker := health.NewChecker(&health.CheckerConfig{
		Checks:  backends.Checks,
		Version: cfg.Version,
	})

	router := api.NewRouter(api.RouterConfig{
		Users:         userService,
		Sessions:      sessions,
		Guard:         auth.NewGuard(issuer),
		Health:        health.NewHandler(checker),
		Metrics:       m,
		Logger:        log,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		SecureCookies: cfg.IsProduction(),
	})

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if backends.Purger != nil {
		sweeper := auth.NewSweeper(backends.Purger, cfg.TokenSweepInterval, m.AddSwept, log)
		go sweeper.Run(runCtx)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", map[string]interface{}{
			"addr":        server.Addr,
			"env":         cfg.AppEnv,
			"db_driver":   cfg.DBDriver,
			"token_store": cfg.TokenStore,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case err := <-serverErr:
		if err != nil {
			log.Error(ctx, "server failed", err)
			exitCode = 1
		}
	case <-runCtx.Done():
		log.Info(ctx, "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "graceful shutdown failed", err)
		exitCode = 1
	}
	if err := backends.Close(shutdownCtx); err != nil {
		log.Error(ctx, "closing storage failed", err)
		exitCode = 1
	}

	stop()
	cancel()
	os.Exit(exitCode)
}

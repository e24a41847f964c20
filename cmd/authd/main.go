// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

// Command authd runs the SecureApprove authentication server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/secureapprove/authd/internal/config"
	"github.com/secureapprove/authd/pkg/auth"
	authhttp "github.com/secureapprove/authd/pkg/auth/http"
	"github.com/secureapprove/authd/pkg/metrics"
	"github.com/secureapprove/authd/pkg/token"
	"github.com/secureapprove/authd/pkg/user"
	"github.com/secureapprove/authd/pkg/webauthn"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/secureapprove/authd.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("authd authentication server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	if envConfig := os.Getenv("AUTHD_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("Starting authentication server",
		"config", *configPath,
		"version", version,
		"rp_id", cfg.WebAuthn.RPID,
		"challenge_backend", cfg.Challenges.Backend)

	if !cfg.Metrics.Enabled {
		metrics.Disable()
	}

	challenges, cleanup, err := newChallengeStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize challenge store", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	users := user.NewMemoryStore()

	ceremonies, err := webauthn.NewService(webauthn.ServiceParams{
		Config:     &cfg.WebAuthn,
		Users:      users,
		Challenges: challenges,
	})
	if err != nil {
		logger.Error("Failed to initialize ceremony service", slog.Any("error", err))
		os.Exit(1)
	}

	tokens, err := token.NewIssuer(cfg.JWT, users)
	if err != nil {
		logger.Error("Failed to initialize token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	svc, err := auth.NewService(auth.ServiceParams{
		Users:      users,
		Ceremonies: ceremonies,
		Tokens:     tokens,
		Challenges: challenges,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Failed to initialize auth service", slog.Any("error", err))
		os.Exit(1)
	}

	router := newRouter(cfg, svc, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx := setupSignalHandler(logger)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	logger.Info("Authentication server started", "addr", addr)

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		logger.Error("Server error", slog.Any("error", err))
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error("Error during server shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Authentication server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// newChallengeStore builds the configured challenge backend. The returned
// cleanup function releases backend resources on shutdown.
func newChallengeStore(cfg *config.Config) (webauthn.ChallengeStore, func(), error) {
	switch cfg.Challenges.Backend {
	case "redis":
		store, err := webauthn.NewRedisChallengeStore(cfg.Challenges.RedisURL, cfg.WebAuthn.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close redis challenge store", slog.Any("error", err))
			}
		}, nil
	default:
		return webauthn.NewMemoryChallengeStore(cfg.WebAuthn.Timeout), func() {}, nil
	}
}

// newRouter assembles the HTTP routes.
func newRouter(cfg *config.Config, svc *auth.Service, logger *slog.Logger) http.Handler {
	handler := authhttp.NewHandler(svc).WithLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		authhttp.MountChi(r, handler)
	})

	return r
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}

// Package main is the entry point for the Meterboard API server.
//
// It loads configuration, opens the audit-log database pool, constructs the
// control-plane clients and billing engine, wires the HTTP handlers onto the
// core chassis, and serves until interrupted.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/api/handlers"
	"meterboard/internal/billing"
	"meterboard/internal/config"
	"meterboard/internal/core"
	"meterboard/internal/db"
	"meterboard/internal/platform"
	"meterboard/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// platformAuthenticator adapts the control-plane auth client to the chassis
// Authenticator interface.
type platformAuthenticator struct {
	client *platform.AuthClient
}

func (a *platformAuthenticator) ResolveToken(ctx context.Context, token string) (*types.UserInfo, error) {
	return a.client.GetUserInfo(ctx, token)
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("meterboard API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Database pool for the deleted-user audit log.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	// Control-plane clients. Auth and pricing ride separate base clients so
	// a tripped breaker on one API does not block the other.
	httpClient := &http.Client{Timeout: cfg.Platform.Timeout}
	authClient := platform.NewAuthClient(httpClient, platform.ClientConfig{
		BaseURL: cfg.Platform.AuthBaseURL,
		APIKey:  cfg.Platform.APIKey,
		Logger:  logger,
	})
	pricingClient := platform.NewPricingClient(httpClient, platform.ClientConfig{
		BaseURL: cfg.Platform.PricingBaseURL,
		APIKey:  cfg.Platform.APIKey,
		Logger:  logger,
	})

	// Billing engine.
	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		return fmt.Errorf("loading billing timezone: %w", err)
	}
	aggregator := billing.NewAggregator(pricingClient, cfg.Billing.UsageFetchParallelism)
	reporter := billing.NewReporter(aggregator)
	segmenter := billing.NewSegmenter(loc, nil)

	deletionLog := db.NewDeletedUserLogRepository(pool)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = &platformAuthenticator{client: authClient}
	srv.HealthProbes = []core.HealthProbe{db.PoolProbe{Pool: pool}}

	authHandler := handlers.NewAuthHandler(authClient, cfg.Security.SecureCookies, logger)
	billingHandler := handlers.NewBillingHandler(authClient, pricingClient, reporter, segmenter, logger)
	meteringHandler := handlers.NewMeteringHandler(pricingClient, srv.Validator, logger)
	usersHandler := handlers.NewUsersHandler(authClient, deletionLog, srv.Validator, logger)
	attributesHandler := handlers.NewAttributesHandler(authClient, authClient, logger)
	tenantsHandler := handlers.NewTenantsHandler(authClient, pricingClient, srv.Validator, logger)
	invitationsHandler := handlers.NewInvitationsHandler(authClient, srv.Validator, logger)

	srv.V1RouteRegistrars = []func(chi.Router){
		authHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		meteringHandler.RegisterRoutes,
		usersHandler.RegisterRoutes,
		attributesHandler.RegisterRoutes,
		tenantsHandler.RegisterRoutes,
		invitationsHandler.RegisterRoutes,
	}
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("meterboard API stopped")
	return nil
}

// newLogger builds the process-wide structured logger. Output is JSON for
// log aggregation; the level is configurable via LOG_LEVEL.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

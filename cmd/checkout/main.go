package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/checkout"
	"github.com/boddenberg/paysimples-checkout-go/internal/config"
	"github.com/boddenberg/paysimples-checkout-go/internal/handler"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/gateway"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/resilience"
	"github.com/boddenberg/paysimples-checkout-go/internal/port"
	"github.com/boddenberg/paysimples-checkout-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("gateway_base_url", cfg.GatewayBaseURL),
		zap.Bool("simulation_mode", cfg.SimulationMode),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("poll_timeout", cfg.PollTimeout),
		zap.Duration("display_delay", cfg.DisplayDelay),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("audit_max_retries", cfg.AuditMaxRetries),
		zap.Bool("admin_enabled", cfg.AdminPasswordHash != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "paysimples-checkout")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Gateway ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	cb := resilience.NewCircuitBreaker("gateway", logger)

	var gw port.Gateway = gateway.NewClient(httpClient, cfg.GatewayBaseURL, cb, metrics, logger)
	if cfg.SimulationMode {
		logger.Warn("SIMULATION_MODE enabled: gateway transport failures will be answered with fabricated responses")
		gw = gateway.NewSimulated(gw, logger)
	}

	// --- Services ---
	recorder := checkout.NewRecorder(gw, resilience.Config{
		MaxRetries:     cfg.AuditMaxRetries,
		InitialBackoff: cfg.AuditInitialBackoff,
		MaxConcurrency: cfg.AuditMaxConcurrency,
	}, metrics, logger)

	checkoutSvc := service.NewCheckoutService(gw, recorder, service.Settings{
		Timings: checkout.Timings{
			PollInterval: cfg.PollInterval,
			PollTimeout:  cfg.PollTimeout,
			DisplayDelay: cfg.DisplayDelay,
		},
		DefaultRedirectURL: cfg.DefaultRedirectURL,
		SessionTTL:         cfg.SessionTTL,
	}, metrics, logger)

	adminAuth := service.NewAdminAuth(cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTAdminTTL, logger)
	if cfg.AdminPasswordHash == "" {
		logger.Warn("admin: ADMIN_PASSWORD_HASH not set, admin routes unavailable")
	}

	// --- Router ---
	router := handler.NewRouter(checkoutSvc, adminAuth, cb, metrics, cfg.CORSAllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		checkoutSvc.Close()
		if rerr := recorder.Close(shutdownCtx); rerr != nil {
			logger.Warn("audit recorder did not drain", zap.Error(rerr))
		}
		if terr := shutdownTracer(shutdownCtx); terr != nil {
			logger.Warn("tracer shutdown failed", zap.Error(terr))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

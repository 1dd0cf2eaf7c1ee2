// Package main is the entry point for the buzzflix orchestration service.
//
// One process runs everything: the HTTP API (series trigger, Stripe webhook,
// health), the recurrence scheduler loop, and the cron-driven social token
// refresher. Graceful shutdown is handled via OS signal interception
// (SIGINT, SIGTERM); in-flight render triggers are intentionally not waited
// for, since pending video rows survive a restart.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/buzzflixai/buzzflix-droplet/internal/api/handlers"
	"github.com/buzzflixai/buzzflix-droplet/internal/billing"
	"github.com/buzzflixai/buzzflix-droplet/internal/config"
	"github.com/buzzflixai/buzzflix-droplet/internal/core"
	"github.com/buzzflixai/buzzflix-droplet/internal/db"
	"github.com/buzzflixai/buzzflix-droplet/internal/dispatch"
	"github.com/buzzflixai/buzzflix-droplet/internal/external"
	"github.com/buzzflixai/buzzflix-droplet/internal/notify/email"
	"github.com/buzzflixai/buzzflix-droplet/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("buzzflix orchestration service starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database pool.
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	// Repositories.
	seriesRepo := db.NewSeriesRepository(pool)
	videoRepo := db.NewVideoRepository(pool)
	scheduleRepo := db.NewScheduleRepository(pool)
	userRepo := db.NewUserRepository(pool, logger)
	socialRepo := db.NewSocialAccountRepository(pool)

	// Optional email notifier for email-destined render triggers.
	var notifier dispatch.Notifier
	if cfg.Email.Host != "" {
		renderer, err := email.NewRenderer()
		if err != nil {
			return fmt.Errorf("building email renderer: %w", err)
		}
		sender := email.NewSender(email.SenderConfig{
			Host:        cfg.Email.Host,
			Port:        cfg.Email.Port,
			Username:    cfg.Email.Username,
			Password:    cfg.Email.Password,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
		})
		notifier = email.NewNotifier(email.NotifierConfig{
			Users:    userRepo,
			Renderer: renderer,
			Sender:   sender,
			Logger:   logger,
		})
	} else {
		logger.Info("smtp host not configured, trigger notifications disabled")
	}

	// Render dispatcher.
	dispatcher := dispatch.New(dispatch.Config{
		Endpoint: cfg.Render.LambdaEndpoint,
		Timeout:  cfg.Render.Timeout,
		Workers:  cfg.Render.Workers,
		Notifier: notifier,
		Logger:   logger,
	})

	// Scheduling services.
	gate := scheduler.NewGate(scheduler.GateConfig{
		Videos: videoRepo,
		Logger: logger,
	})
	recurrence := scheduler.NewRecurrence(scheduler.RecurrenceConfig{
		Series:       seriesRepo,
		Gate:         gate,
		Dispatcher:   dispatcher,
		TickInterval: cfg.Scheduler.TickInterval,
		Logger:       logger,
	})
	preScheduler := scheduler.NewPreScheduler(scheduler.PreSchedulerConfig{
		Videos:  videoRepo,
		Entries: scheduleRepo,
		Logger:  logger,
	})

	// HTTP server and handlers.
	srv, err := core.NewServer(cfg, pool, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	planRegistry := billing.NewStaticPlanRegistry()
	validator := core.NewValidator()

	seriesHandler := handlers.NewSeriesHandler(handlers.SeriesHandlerConfig{
		Series:    seriesRepo,
		Users:     userRepo,
		Videos:    videoRepo,
		Schedules: scheduleRepo,
		Batch:     preScheduler,
		Trigger:   dispatcher,
		Plans:     planRegistry,
		Validator: validator,
		Logger:    logger,
	})
	seriesHandler.RegisterRoutes(srv.Router())

	webhookHandler := handlers.NewStripeWebhookHandler(handlers.StripeWebhookHandlerConfig{
		Verifier:    &external.StripeVerifier{},
		Users:       userRepo,
		PriceToPlan: billing.PriceToPlan(cfg.Billing),
		Secret:      cfg.Billing.StripeWebhookSecret.Unmask(),
		Logger:      logger,
	})
	webhookHandler.RegisterRoutes(srv.Router())

	// Background: recurrence loop.
	go recurrence.Run(ctx)

	// Background: hourly token refresh, only when credentials are present.
	var cronRunner *cron.Cron
	if cfg.TikTok.ClientKey != "" {
		tiktok := external.NewTikTokClient(external.TikTokClientConfig{
			ClientKey:    cfg.TikTok.ClientKey,
			ClientSecret: cfg.TikTok.ClientSecret,
		})
		refresher := scheduler.NewTokenRefresher(scheduler.TokenRefresherConfig{
			Accounts: socialRepo,
			OAuth:    tiktok,
			Window:   cfg.Scheduler.RefreshWindow,
			Logger:   logger,
		})

		cronRunner = cron.New()
		spec := fmt.Sprintf("@every %s", cfg.Scheduler.RefreshInterval)
		if _, err := cronRunner.AddFunc(spec, func() {
			if _, err := refresher.RunOnce(ctx); err != nil {
				logger.Error("token refresh pass failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling token refresh: %w", err)
		}
		cronRunner.Start()
	} else {
		logger.Info("tiktok credentials not configured, token refresh disabled")
	}

	err = runHTTPServer(srv, cfg, logger)

	// Stop background work after the listener is down.
	cancel()
	if cronRunner != nil {
		cronRunner.Stop()
	}
	return err
}

// runHTTPServer starts the listener and blocks until a shutdown signal or a
// server error.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON slog.Logger for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

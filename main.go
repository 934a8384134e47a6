package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"sport-activities/internal/config"
	"sport-activities/internal/database"
	"sport-activities/internal/fetch"
	"sport-activities/internal/garmin"
	"sport-activities/internal/handlers"
	"sport-activities/internal/metrics"
	"sport-activities/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting sport-activities server",
		"host", cfg.Host,
		"port", cfg.Port,
		"session_cache", cfg.SessionCacheEnabled,
		"remote_date_filter", cfg.RemoteDateFilter,
		"log_level", cfg.LogLevel)

	// The session store is optional; without it every process start logs in again
	var (
		store  session.Store
		health handlers.HealthChecker
		db     *database.DB
	)
	if cfg.SessionCacheEnabled {
		db, err = database.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Init(); err != nil {
			return err
		}
		store, health = db, db
		logger.Info("Session store opened", "database", cfg.DatabasePath)
	}

	client := garmin.NewClient(cfg.GarminAPIURL, cfg.GarminSSOURL, cfg.RequestTimeout, logger)
	account := garmin.NewAccount(client, cfg.GarminUser, cfg.GarminPassword)
	provider := session.NewCachingProvider(account, store, logger)
	walker := fetch.NewWalker(provider, logger, fetch.WithRemoteDateFilter(cfg.RemoteDateFilter))

	activitiesHandler := handlers.NewActivitiesHandler(walker, health, cfg, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      activitiesHandler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // long range walks
		IdleTimeout:  120 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort),
			Handler: metricsMux,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("Metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		if db != nil {
			g.Go(func() error {
				logger.Info("Starting session TTL collector")
				metrics.StartSessionTTLCollector(gctx, db, 30*time.Second)
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown failed", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

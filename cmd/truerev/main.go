// TrueRev - True-revenue underwriting for merchant cash advances.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

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

	"github.com/opensource-finance/truerev/internal/api"
	"github.com/opensource-finance/truerev/internal/bus"
	"github.com/opensource-finance/truerev/internal/cache"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/metrics"
	"github.com/opensource-finance/truerev/internal/pipeline"
	"github.com/opensource-finance/truerev/internal/repository"
	"github.com/opensource-finance/truerev/internal/rules"
	"github.com/opensource-finance/truerev/internal/signals"
	"github.com/opensource-finance/truerev/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	s, err := loadSettings(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "truerev: %v\n", err)
		os.Exit(2)
	}
	cfg := s.Config
	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting truerev",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"tracing", cfg.Tracing.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	sc := cfg.Underwriting.Signals
	providers := signals.HTTPProviders(sc, &http.Client{Timeout: sc.Timeout})
	signalSvc := signals.NewService(sc, cacheImpl, providers...)
	slog.Info("signal service initialized", "providers", signalSvc.Providers())

	store := rules.NewStore(repo)
	p := pipeline.New(cfg.Underwriting, pipeline.Deps{
		Repo:    repo,
		Bus:     busImpl,
		Signals: signalSvc,
		Rules:   store,
		Metrics: m,
	})

	var asyncWorker *worker.Worker
	if s.WorkerEnabled {
		asyncWorker = worker.NewWorker(busImpl, p, m)
		if err := asyncWorker.Start(s.Worker); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started",
				"tenants", s.Worker.TenantIDs,
				"workers", s.Worker.WorkerCount,
			)
		}
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Pipeline:    p,
		Repo:        repo,
		Cache:       cacheImpl,
		Bus:         busImpl,
		Rules:       store,
		Metrics:     m,
		Version:     Version,
		MetricsPath: cfg.Metrics.Path,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("truerev is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop taking queued work before the server goes away.
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("truerev shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  TrueRev - true-revenue underwriting")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assessments        - Underwrite an application (?async=true to queue)")
	fmt.Println("    GET  /assessments/{id}   - Get an assessment")
	fmt.Println("    POST /revenue/monthly    - True revenue and monthly breakdown")
	fmt.Println("    POST /nsf                - NSF and negative balance analysis")
	fmt.Println("    POST /fraud              - Statement fraud signals")
	fmt.Println("    POST /offers             - Price an offer within capacity")
	fmt.Println("    POST /stacking           - Position stacking analysis")
	fmt.Println("    POST /quick-check        - Pre-screen an application")
	fmt.Println("    GET  /rules              - List custom rules")
	fmt.Println("    POST /rules              - Create a custom rule")
	fmt.Println("    POST /rules/reload       - Recompile rules from the database")
	fmt.Println("    GET  /health             - Health check")
	fmt.Println()
}

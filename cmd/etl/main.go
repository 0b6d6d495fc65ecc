package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/crypto-etl/internal/config"
	"github.com/rickgao/crypto-etl/internal/fetch"
	"github.com/rickgao/crypto-etl/internal/load"
	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/pipeline"
	"github.com/rickgao/crypto-etl/internal/server"
	"github.com/rickgao/crypto-etl/internal/storage"
	"github.com/rickgao/crypto-etl/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/etl.local.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	replay := flag.String("replay", "", "run once from an audit snapshot path, or \"latest\"")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting crypto-etl",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.BaseURL,
		"interval", cfg.ETL.Interval,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open storage: Postgres when reachable, SQLite otherwise
	backend, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}

	logger.Info("storage ready", "backend", backend.Name())

	// Assemble the pipeline
	client := fetch.NewClient(
		cfg.API.BaseURL,
		fetch.WithAPIKey(cfg.API.APIKey),
		fetch.WithTimeout(cfg.API.Timeout),
		fetch.WithLogger(logger),
	)
	snapshots := fetch.NewSnapshotStore(cfg.Audit.Dir)
	fetcher := fetch.NewFetcher(client, snapshots, fetch.Config{
		VsCurrency:  cfg.API.VsCurrency,
		TopN:        cfg.API.TopN,
		MaxAttempts: cfg.API.MaxRetries,
		BackoffBase: cfg.API.RetryBackoff,
	}, logger)
	loader := load.NewLoader(backend, cfg.ETL.BatchSize, logger)
	pipe := pipeline.New(fetcher, loader, logger)

	// One-shot modes run on the signal context so Ctrl-C interrupts
	// retries and backoff waits.
	if *replay != "" {
		code := runReplay(ctx, *replay, snapshots, loader, logger)
		backend.Close()
		os.Exit(code)
	}
	if *once {
		code := runOnce(ctx, pipe, logger)
		backend.Close()
		os.Exit(code)
	}

	// Daemon mode: scheduled runs plus the ops server
	orch := pipeline.NewOrchestrator(pipe, pipeline.Config{
		Interval:         cfg.ETL.Interval,
		RunOnStart:       cfg.ETL.RunImmediately(),
		FailureThreshold: cfg.ETL.FailureThreshold,
	}, logger)
	if err := orch.Start(); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		backend.Close()
		os.Exit(1)
	}

	opsServer := server.New(cfg.Server.Port, orch, backend, logger)
	opsServer.Start()

	logger.Info("etl daemon running",
		"instance_id", cfg.Instance.ID,
		"interval", cfg.ETL.Interval,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown incomplete", "error", err)
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown incomplete", "error", err)
	}
	backend.Close()

	logger.Info("etl stopped")
}

// runOnce executes a single pipeline run and maps it to an exit code.
func runOnce(ctx context.Context, pipe *pipeline.Pipeline, logger *slog.Logger) int {
	outcome := pipe.RunOnce(ctx, model.TriggerCLI)
	if !outcome.Success {
		logger.Error("run failed", "run_id", outcome.RunID, "error", outcome.Err)
		return 1
	}
	return 0
}

// runReplay re-runs the pipeline from a saved audit snapshot. The target is
// a snapshot path, or "latest" for the newest file in the audit directory.
func runReplay(ctx context.Context, target string, snapshots *fetch.SnapshotStore, loader *load.Loader, logger *slog.Logger) int {
	path := target
	if target == "latest" {
		paths, err := snapshots.List(1)
		if err != nil {
			logger.Error("failed to list audit snapshots", "error", err)
			return 1
		}
		if len(paths) == 0 {
			logger.Error("no audit snapshots to replay")
			return 1
		}
		path = paths[0]
	}

	outcome, err := pipeline.RunFromSnapshot(ctx, path, loader, logger)
	if err != nil {
		logger.Error("replay failed", "snapshot", path, "error", err)
		return 1
	}
	if !outcome.Success {
		logger.Error("replay run failed", "run_id", outcome.RunID, "error", outcome.Err)
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

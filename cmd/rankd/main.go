// Command rankd runs the classification daemon: it waits for fresh
// ingestion, re-reads the persisted aggregates at week granularity, ranks
// them with 3-cluster k-means, and persists the ranked set.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/aeroclimate/takeoff-humidity/internal/adapter/http"
	"github.com/aeroclimate/takeoff-humidity/internal/classify"
	"github.com/aeroclimate/takeoff-humidity/internal/config"
	"github.com/aeroclimate/takeoff-humidity/internal/gate"
	"github.com/aeroclimate/takeoff-humidity/internal/observability"
	"github.com/aeroclimate/takeoff-humidity/internal/pipeline"
	"github.com/aeroclimate/takeoff-humidity/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run a single classification pass and exit")
	flag.Parse()

	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, err := store.Open(ctx, cfg.DatabaseDSN, cfg.RankBatchSize, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	readiness := gate.New(gateway, cfg.GatePollInterval, cfg.GateTimeout, clock, logger)
	classifier := classify.New(cfg.ClusterSeed, logger)
	retrier := pipeline.NewRetrier(cfg.RetryAttempts, cfg.RetryDelay, clock, logger, metrics)
	classification := pipeline.NewClassification(gateway, readiness, classifier, retrier, clock, logger, metrics)
	runner := pipeline.NewRunner("classification", cfg.ClassifyInterval, classification.Run, clock, logger, metrics)

	if *once {
		if err := runner.Once(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, gateway, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		_ = runner.Loop(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

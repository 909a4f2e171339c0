// Command ingestd runs the ingestion daemon: it drains the raw flight
// weather feed on a fixed interval, aggregates it, and persists the
// canonical record set to Postgres.
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
	"github.com/aeroclimate/takeoff-humidity/internal/aggregate"
	"github.com/aeroclimate/takeoff-humidity/internal/config"
	"github.com/aeroclimate/takeoff-humidity/internal/observability"
	"github.com/aeroclimate/takeoff-humidity/internal/pipeline"
	"github.com/aeroclimate/takeoff-humidity/internal/source"
	"github.com/aeroclimate/takeoff-humidity/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run a single ingestion pass and exit")
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

	gateway, err := store.Open(ctx, cfg.DatabaseDSN, cfg.FlightBatchSize, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	feed := feedFactory(cfg, logger)
	retrier := pipeline.NewRetrier(cfg.RetryAttempts, cfg.RetryDelay, clock, logger, metrics)
	ingestion := pipeline.NewIngestion(feed, aggregate.New(logger), gateway, retrier, logger, metrics)
	runner := pipeline.NewRunner("ingestion", cfg.IngestInterval, ingestion.Run, clock, logger, metrics)

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

// feedFactory returns a factory that opens a fresh feed per aggregation
// attempt, so a retried attempt never resumes a half-consumed source.
func feedFactory(cfg *config.Config, logger *slog.Logger) pipeline.FeedFactory {
	switch cfg.Source {
	case "kafka":
		return func(_ context.Context) (pipeline.Feed, error) {
			return source.NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.ChunkSize, cfg.KafkaIdleTimeout, logger), nil
		}
	default:
		return func(_ context.Context) (pipeline.Feed, error) {
			return source.OpenCSV(cfg.CSVPath, cfg.ChunkSize, logger)
		}
	}
}

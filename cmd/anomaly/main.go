package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/driftlab/weather-anomaly/internal/adapter/http"
	kafkaadapter "github.com/driftlab/weather-anomaly/internal/adapter/kafka"
	"github.com/driftlab/weather-anomaly/internal/config"
	"github.com/driftlab/weather-anomaly/internal/observability"
	"github.com/driftlab/weather-anomaly/internal/pipeline"
	"github.com/driftlab/weather-anomaly/internal/report"
	"github.com/driftlab/weather-anomaly/internal/store/csvfile"
	"github.com/driftlab/weather-anomaly/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, closeLoader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLoader()

	sinks, closeSinks, err := newSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	p := pipeline.New(loader, sinks, cfg.Threshold, logger, metrics)

	if _, err := p.Run(ctx); err != nil {
		return err
	}

	if cfg.ServeEnabled() {
		return serve(ctx, cfg, p, logger)
	}
	return nil
}

// newLoader builds the dataset loader selected by DATASET_SOURCE. The
// returned cleanup releases whatever the loader holds open.
func newLoader(cfg *config.Config, logger *slog.Logger) (pipeline.DatasetLoader, func(), error) {
	switch cfg.DatasetSource {
	case "csv":
		logger.Info("dataset source", "kind", "csv", "dir", cfg.CSVDir)
		return csvfile.NewLoader(cfg.CSVDir, logger), func() {}, nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("dataset source", "kind", "sqlite", "path", cfg.SQLitePath)
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Error("database close error", "error", err)
			}
		}
		return sqlite.NewStore(db, logger), cleanup, nil
	}
}

// newSinks assembles the report sinks: the configured primary format to
// stdout or REPORT_PATH, plus the Kafka publisher when brokers are set.
func newSinks(cfg *config.Config, logger *slog.Logger) ([]pipeline.ReportSink, func(), error) {
	out, cleanup, err := reportOutput(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var primary pipeline.ReportSink
	switch cfg.ReportFormat {
	case "json":
		primary = report.NewJSONWriter(out)
	default:
		primary = report.NewTableWriter(out)
	}
	sinks := []pipeline.ReportSink{primary}

	if cfg.KafkaEnabled() {
		kw := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, kw)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)

		closeOut := cleanup
		cleanup = func() {
			if err := kw.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
			closeOut()
		}
	}
	return sinks, cleanup, nil
}

func reportOutput(cfg *config.Config, logger *slog.Logger) (io.Writer, func(), error) {
	if cfg.ReportPath == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(cfg.ReportPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create report file: %w", err)
	}
	cleanup := func() {
		if err := f.Close(); err != nil {
			logger.Error("report file close error", "error", err)
		}
	}
	return f, cleanup, nil
}

// serve keeps the HTTP endpoints up after the run until SIGINT/SIGTERM.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

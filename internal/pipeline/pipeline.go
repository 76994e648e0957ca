package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/driftlab/weather-anomaly/internal/domain"
	"github.com/driftlab/weather-anomaly/internal/observability"
)

// DatasetLoader materializes the three input relations from a store.
type DatasetLoader interface {
	LoadDataset(ctx context.Context) (domain.Dataset, error)
}

// ReportSink receives the finished report of one analysis run.
type ReportSink interface {
	WriteReport(ctx context.Context, rep domain.Report) error
}

// Pipeline orchestrates one load-analyze-report run.
type Pipeline struct {
	loader    DatasetLoader
	sinks     []ReportSink
	threshold float64
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	last      atomic.Pointer[domain.Report]
}

// New creates a Pipeline with the given stages and observability.
func New(loader DatasetLoader, sinks []ReportSink, threshold float64, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		loader:    loader,
		sinks:     sinks,
		threshold: threshold,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once an analysis run has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no analysis run has completed yet")
	}
	return nil
}

// LastReport returns the report of the most recent completed run.
func (p *Pipeline) LastReport() (domain.Report, bool) {
	rep := p.last.Load()
	if rep == nil {
		return domain.Report{}, false
	}
	return *rep, true
}

// Run executes one load-analyze-report cycle and returns the report it
// produced. Sinks run in the order given to New; the first sink error
// aborts the run, so a report only counts as complete once every sink has
// accepted it.
func (p *Pipeline) Run(ctx context.Context) (domain.Report, error) {
	start := time.Now()
	p.logger.Info("run started", "threshold", p.threshold)

	ds, err := p.loader.LoadDataset(ctx)
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return domain.Report{}, fmt.Errorf("load dataset: %w", err)
	}
	p.metrics.ReadingsLoaded.Add(float64(len(ds.Readings)))

	rep := domain.Analyze(ds, p.threshold)
	p.metrics.ReadingsUnresolved.Add(float64(rep.UnresolvedCount))
	p.metrics.AnomaliesDetected.Add(float64(len(rep.Anomalies)))
	p.metrics.ZeroVarianceCities.Add(float64(len(rep.ZeroVarianceCities)))
	p.metrics.CitiesTracked.Set(float64(len(rep.Cities)))

	p.logger.Info("analysis complete",
		"run_id", rep.RunID,
		"readings", rep.ReadingCount,
		"unresolved", rep.UnresolvedCount,
		"cities", len(rep.Cities),
		"zero_variance_cities", len(rep.ZeroVarianceCities),
		"anomalies", len(rep.Anomalies),
	)

	for _, sink := range p.sinks {
		if err := sink.WriteReport(ctx, rep); err != nil {
			p.metrics.Runs.WithLabelValues("error").Inc()
			return domain.Report{}, fmt.Errorf("write report: %w", err)
		}
	}

	p.last.Store(&rep)
	p.ready.Store(true)
	p.metrics.Runs.WithLabelValues("ok").Inc()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("run complete", "run_id", rep.RunID, "duration", time.Since(start))
	return rep, nil
}

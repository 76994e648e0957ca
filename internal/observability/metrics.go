package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, gauges, and histograms for the
// anomaly pipeline.
type Metrics struct {
	ReadingsLoaded     prometheus.Counter
	ReadingsUnresolved prometheus.Counter
	AnomaliesDetected  prometheus.Counter
	ZeroVarianceCities prometheus.Counter
	Runs               *prometheus.CounterVec // labels: status={ok,error}
	CitiesTracked      prometheus.Gauge
	RunDuration        prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReadingsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_anomaly",
			Name:      "readings_loaded_total",
			Help:      "Total readings loaded from the dataset store.",
		}),
		ReadingsUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_anomaly",
			Name:      "readings_unresolved_total",
			Help:      "Total readings dropped because their station or location did not resolve.",
		}),
		AnomaliesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_anomaly",
			Name:      "anomalies_detected_total",
			Help:      "Total readings flagged as anomalous.",
		}),
		ZeroVarianceCities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_anomaly",
			Name:      "zero_variance_cities_total",
			Help:      "Total cities excluded from scoring because all their readings are identical.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_anomaly",
			Name:      "runs_total",
			Help:      "Completed analysis runs by status.",
		}, []string{"status"}),
		CitiesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_anomaly",
			Name:      "cities_tracked",
			Help:      "Cities with at least one resolved reading in the last run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_anomaly",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-analyze-report run.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.ReadingsLoaded,
		m.ReadingsUnresolved,
		m.AnomaliesDetected,
		m.ZeroVarianceCities,
		m.Runs,
		m.CitiesTracked,
		m.RunDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ReadingsLoaded:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_anomaly", Name: "readings_loaded_total"}),
		ReadingsUnresolved: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_anomaly", Name: "readings_unresolved_total"}),
		AnomaliesDetected:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_anomaly", Name: "anomalies_detected_total"}),
		ZeroVarianceCities: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "weather_anomaly", Name: "zero_variance_cities_total"}),
		Runs:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "weather_anomaly", Name: "runs_total"}, []string{"status"}),
		CitiesTracked:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "weather_anomaly", Name: "cities_tracked"}),
		RunDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "weather_anomaly", Name: "run_duration_seconds"}),
	}
}

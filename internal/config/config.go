package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tool settings, populated from environment variables.
type Config struct {
	// Threshold is the |z-score| cutoff for flagging a reading. Readings
	// are compared against the unrounded score.
	Threshold float64

	// Dataset source selection: "sqlite" reads SQLitePath, "csv" reads
	// the three relation files under CSVDir.
	DatasetSource string
	SQLitePath    string
	CSVDir        string

	// Report output: "table" or "json", written to ReportPath or stdout
	// when ReportPath is empty.
	ReportFormat string
	ReportPath   string

	// Kafka anomaly publishing, enabled when brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional report server, enabled when HTTPAddr is set.
	HTTPAddr        string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// KafkaEnabled reports whether the Kafka anomaly sink should be wired up.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ServeEnabled reports whether the report HTTP server should be started
// after the batch run.
func (c *Config) ServeEnabled() bool { return c.HTTPAddr != "" }

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is read first; real
// environment variables win over file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	threshold, err := parseThreshold()
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Threshold:       threshold,
		DatasetSource:   envOrDefault("DATASET_SOURCE", "sqlite"),
		SQLitePath:      envOrDefault("SQLITE_PATH", "data/weather.db"),
		CSVDir:          envOrDefault("CSV_DIR", "data"),
		ReportFormat:    envOrDefault("REPORT_FORMAT", "table"),
		ReportPath:      os.Getenv("REPORT_PATH"),
		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "temperature-anomalies"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
	}

	switch cfg.DatasetSource {
	case "sqlite", "csv":
	default:
		return nil, fmt.Errorf("invalid DATASET_SOURCE %q (want sqlite or csv)", cfg.DatasetSource)
	}
	switch cfg.ReportFormat {
	case "table", "json":
	default:
		return nil, fmt.Errorf("invalid REPORT_FORMAT %q (want table or json)", cfg.ReportFormat)
	}
	if cfg.DatasetSource == "sqlite" && cfg.SQLitePath == "" {
		return nil, errors.New("SQLITE_PATH is required")
	}
	if cfg.DatasetSource == "csv" && cfg.CSVDir == "" {
		return nil, errors.New("CSV_DIR is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseThreshold() (float64, error) {
	s := envOrDefault("ANOMALY_THRESHOLD", "1.0")
	v, err := strconv.ParseFloat(s, 64)
	// ParseFloat accepts "NaN" and "Inf" without error, so reject those
	// explicitly along with non-positive values.
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("invalid ANOMALY_THRESHOLD %q (want a number > 0)", s)
	}
	return v, nil
}

func parseShutdownTimeout() (time.Duration, error) {
	s := envOrDefault("SHUTDOWN_TIMEOUT", "10s")
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", s)
	}
	return d, nil
}

// parseBrokers splits a comma-separated broker list, dropping empty
// entries. An empty input yields nil, which disables the Kafka sink.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/driftlab/weather-anomaly/internal/config"
	"github.com/driftlab/weather-anomaly/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes flagged anomalies to a Kafka topic.
// It implements pipeline.ReportSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured anomaly topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteReport publishes each flagged anomaly as one message, all in a
// single WriteMessages call so a broker failure never leaves a partial
// run on the topic. A report without anomalies publishes nothing.
func (w *Writer) WriteReport(ctx context.Context, rep domain.Report) error {
	if len(rep.Anomalies) == 0 {
		w.logger.Info("no anomalies to publish", "run_id", rep.RunID)
		return nil
	}

	msgs := make([]kafkago.Message, len(rep.Anomalies))
	for i := range rep.Anomalies {
		msg, err := serializeToMessage(rep.Anomalies[i], rep.RunID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish anomalies: %w", err)
	}

	w.logger.Info("anomalies published", "run_id", rep.RunID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an anomaly record into a Kafka message keyed
// by its stable id, so re-publishing a run overwrites rather than
// duplicates under log compaction.
func serializeToMessage(rec domain.AnomalyRecord, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize anomaly: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.AnomalyID(rec)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "city", Value: []byte(rec.City)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}

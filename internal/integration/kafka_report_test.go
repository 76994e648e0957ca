//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/driftlab/weather-anomaly/internal/adapter/kafka"
	"github.com/driftlab/weather-anomaly/internal/config"
	"github.com/driftlab/weather-anomaly/internal/domain"
	"github.com/driftlab/weather-anomaly/internal/observability"
	"github.com/driftlab/weather-anomaly/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-anomalies"

// startKafka runs a single-broker Kafka container and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})
	require.NoError(t, err)

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC)
}

type staticLoader struct {
	ds domain.Dataset
}

func (l *staticLoader) LoadDataset(_ context.Context) (domain.Dataset, error) {
	return l.ds, nil
}

// publishedAnomaly holds a deserialized message read from the anomaly topic.
type publishedAnomaly struct {
	Record  domain.AnomalyRecord
	Key     string
	Headers map[string]string
}

// readPublished reads a single message from the consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedAnomaly {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from anomaly topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.AnomalyRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal anomaly message")

	return publishedAnomaly{Record: rec, Key: string(msg.Key), Headers: headers}
}

// TestAnomalyPublisher runs the full pipeline against real Kafka and
// verifies every flagged anomaly lands on the topic in report order,
// keyed by its stable id.
func TestAnomalyPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testTopic,
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	loader := &staticLoader{ds: domain.Dataset{
		Readings: []domain.Reading{
			{ReadingDate: day(1), StationID: "st-den", Temperature: 10},
			{ReadingDate: day(2), StationID: "st-den", Temperature: 12},
			{ReadingDate: day(3), StationID: "st-den", Temperature: 14},
			{ReadingDate: day(4), StationID: "st-den", Temperature: 50},
		},
		Stations:  []domain.Station{{StationID: "st-den", LocationID: "loc-den"}},
		Locations: []domain.Location{{LocationID: "loc-den", City: "Denver"}},
	}}

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(loader, []pipeline.ReportSink{writer}, 0.5, discardLogger(), metrics)

	rep, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Anomalies, 3)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	for i := range rep.Anomalies {
		pub := readPublished(ctx, t, consumer)
		assert.Equal(t, domain.AnomalyID(rep.Anomalies[i]), pub.Key)
		assert.Equal(t, rep.Anomalies[i].City, pub.Headers["city"])
		assert.Equal(t, rep.RunID, pub.Headers["run_id"])
		assert.Equal(t, rep.Anomalies[i], pub.Record)
	}
}

// TestAnomalyPublisher_EmptyReport verifies a run without anomalies
// publishes nothing at all.
func TestAnomalyPublisher_EmptyReport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testTopic,
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(&staticLoader{}, []pipeline.ReportSink{writer}, 1.0, discardLogger(), metrics)

	_, err := p.Run(ctx)
	require.NoError(t, err)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no messages on anomaly topic")
}

package kafka

import (
	"testing"
	"time"

	"github.com/driftlab/weather-anomaly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() domain.AnomalyRecord {
	return domain.AnomalyRecord{
		ReadingDate: time.Date(2024, time.January, 4, 0, 0, 0, 0, time.UTC),
		City:        "Denver",
		Temperature: 50,
		AvgTemp:     21.5,
		StdDev:      16.5,
		ZScore:      1.73,
	}
}

func TestSerializeToMessage(t *testing.T) {
	rec := sampleRecord()

	msg, err := serializeToMessage(rec, "run-1")
	require.NoError(t, err)

	assert.Equal(t, []byte(domain.AnomalyID(rec)), msg.Key)
	assert.Contains(t, string(msg.Value), `"city":"Denver"`)
	assert.Contains(t, string(msg.Value), `"z_score":1.73`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "city", msg.Headers[0].Key)
	assert.Equal(t, []byte("Denver"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
}

func TestSerializeToMessage_Deterministic(t *testing.T) {
	first, err := serializeToMessage(sampleRecord(), "run-1")
	require.NoError(t, err)
	second, err := serializeToMessage(sampleRecord(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Value, second.Value)
}

package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denverJoined(t *testing.T) ([]CityReading, map[string]CityStats) {
	t.Helper()
	joined, _ := JoinReadings(denverDataset())
	return joined, ComputeStats(joined, ComputeBaselines(joined))
}

func TestDetectAnomalies_DefaultThreshold(t *testing.T) {
	joined, stats := denverJoined(t)

	anomalies := DetectAnomalies(joined, stats, 1.0)

	// Only the 50-degree reading clears |z| > 1; the 12-degree reading
	// scores z ≈ -0.58 and stays out.
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyRecord{
		ReadingDate: day(4),
		City:        "Denver",
		Temperature: 50,
		AvgTemp:     21.5,
		StdDev:      math.Sqrt(272.75),
		ZScore:      1.73,
	}, anomalies[0])
}

func TestDetectAnomalies_RaisedThreshold(t *testing.T) {
	joined, stats := denverJoined(t)

	assert.Empty(t, DetectAnomalies(joined, stats, 2.0))
}

func TestDetectAnomalies_OrderedByMagnitude(t *testing.T) {
	joined, stats := denverJoined(t)

	// At 0.5 three readings qualify: z(50) ≈ 1.73, z(10) ≈ -0.70,
	// z(12) ≈ -0.58, ordered by |z| descending.
	anomalies := DetectAnomalies(joined, stats, 0.5)

	require.Len(t, anomalies, 3)
	assert.Equal(t, []float64{50, 10, 12}, []float64{
		anomalies[0].Temperature, anomalies[1].Temperature, anomalies[2].Temperature,
	})
	assert.Equal(t, 1.73, anomalies[0].ZScore)
	assert.Equal(t, -0.70, anomalies[1].ZScore)
	assert.Equal(t, -0.58, anomalies[2].ZScore)
}

func TestDetectAnomalies_TiesKeepInputOrder(t *testing.T) {
	stats := map[string]CityStats{
		"Anchorage": {City: "Anchorage", AvgTemp: 5, StdDev: 5, ReadingCount: 4},
	}
	readings := []CityReading{
		{ReadingDate: day(1), City: "Anchorage", Temperature: 0},
		{ReadingDate: day(2), City: "Anchorage", Temperature: 10},
		{ReadingDate: day(3), City: "Anchorage", Temperature: 0},
	}

	// All three score |z| = 1, so input order must survive the sort.
	anomalies := DetectAnomalies(readings, stats, 0.5)

	require.Len(t, anomalies, 3)
	assert.Equal(t, day(1), anomalies[0].ReadingDate)
	assert.Equal(t, day(2), anomalies[1].ReadingDate)
	assert.Equal(t, day(3), anomalies[2].ReadingDate)
}

func TestDetectAnomalies_ComparesUnroundedScore(t *testing.T) {
	stats := map[string]CityStats{
		"Oslo": {City: "Oslo", AvgTemp: 0, StdDev: 1, ReadingCount: 2},
	}

	t.Run("just above threshold", func(t *testing.T) {
		readings := []CityReading{{ReadingDate: day(1), City: "Oslo", Temperature: 1.004}}
		anomalies := DetectAnomalies(readings, stats, 1.0)

		// Included on the unrounded score even though it reports as 1.00.
		require.Len(t, anomalies, 1)
		assert.Equal(t, 1.0, anomalies[0].ZScore)
	})

	t.Run("just below threshold", func(t *testing.T) {
		readings := []CityReading{{ReadingDate: day(1), City: "Oslo", Temperature: 0.996}}
		assert.Empty(t, DetectAnomalies(readings, stats, 1.0))
	})

	t.Run("exactly at threshold", func(t *testing.T) {
		readings := []CityReading{{ReadingDate: day(1), City: "Oslo", Temperature: 1.0}}
		assert.Empty(t, DetectAnomalies(readings, stats, 1.0))
	})
}

func TestDetectAnomalies_SkipsZeroVarianceCities(t *testing.T) {
	stats := map[string]CityStats{
		"Fairbanks": {City: "Fairbanks", AvgTemp: 72, StdDev: 0, ReadingCount: 1},
	}
	readings := []CityReading{
		{ReadingDate: day(1), City: "Fairbanks", Temperature: 72},
		{ReadingDate: day(2), City: "Fairbanks", Temperature: 100},
	}

	assert.Empty(t, DetectAnomalies(readings, stats, 1.0))
}

func TestDetectAnomalies_ThresholdMonotonic(t *testing.T) {
	joined, stats := denverJoined(t)

	loose := DetectAnomalies(joined, stats, 0.5)
	tight := DetectAnomalies(joined, stats, 1.0)

	assert.LessOrEqual(t, len(tight), len(loose))
	for _, rec := range tight {
		assert.Contains(t, loose, rec)
	}
}

func TestDetectAnomalies_EmptyInput(t *testing.T) {
	anomalies := DetectAnomalies(nil, nil, 1.0)

	assert.NotNil(t, anomalies)
	assert.Empty(t, anomalies)
}

func TestZeroVarianceCities(t *testing.T) {
	stats := map[string]CityStats{
		"Oslo":      {City: "Oslo", StdDev: 0},
		"Austin":    {City: "Austin", StdDev: 2.5},
		"Fairbanks": {City: "Fairbanks", StdDev: 0},
	}

	assert.Equal(t, []string{"Fairbanks", "Oslo"}, ZeroVarianceCities(stats))
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		expected float64
	}{
		{"half rounds away from zero", 0.125, 0.13},
		{"negative half rounds away from zero", -0.125, -0.13},
		{"already two decimals", 1.5, 1.5},
		{"rounds up", 1.236, 1.24},
		{"rounds down", -1.234, -1.23},
		{"small magnitude to zero", 0.004, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, roundScore(tt.score))
		})
	}
}

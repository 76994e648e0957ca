package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// denverDataset is the reference scenario used throughout these tests: one
// city with readings [10, 12, 14, 50]. Mean 21.5, population variance
// 1091/4 = 272.75, so 50 scores z ≈ 1.73 and 12 scores z ≈ -0.58.
func denverDataset() Dataset {
	return Dataset{
		Readings: []Reading{
			{ReadingDate: day(1), StationID: "st-den", Temperature: 10},
			{ReadingDate: day(2), StationID: "st-den", Temperature: 12},
			{ReadingDate: day(3), StationID: "st-den", Temperature: 14},
			{ReadingDate: day(4), StationID: "st-den", Temperature: 50},
		},
		Stations:  []Station{{StationID: "st-den", LocationID: "loc-den"}},
		Locations: []Location{{LocationID: "loc-den", City: "Denver"}},
	}
}

func TestComputeBaselines(t *testing.T) {
	joined, _ := JoinReadings(denverDataset())
	baselines := ComputeBaselines(joined)

	require.Len(t, baselines, 1)
	assert.Equal(t, CityBaseline{City: "Denver", AvgTemp: 21.5}, baselines["Denver"])
}

func TestComputeBaselines_PerCity(t *testing.T) {
	readings := []CityReading{
		{ReadingDate: day(1), City: "Austin", Temperature: 30},
		{ReadingDate: day(1), City: "Oslo", Temperature: -4},
		{ReadingDate: day(2), City: "Austin", Temperature: 34},
		{ReadingDate: day(2), City: "Oslo", Temperature: -6},
	}

	baselines := ComputeBaselines(readings)

	require.Len(t, baselines, 2)
	assert.Equal(t, 32.0, baselines["Austin"].AvgTemp)
	assert.Equal(t, -5.0, baselines["Oslo"].AvgTemp)
}

func TestComputeBaselines_Empty(t *testing.T) {
	assert.Empty(t, ComputeBaselines(nil))
}

func TestComputeStats_PopulationDivisor(t *testing.T) {
	joined, _ := JoinReadings(denverDataset())
	stats := ComputeStats(joined, ComputeBaselines(joined))

	require.Contains(t, stats, "Denver")
	denver := stats["Denver"]
	assert.Equal(t, 21.5, denver.AvgTemp)
	assert.Equal(t, math.Sqrt(272.75), denver.StdDev)
	assert.Equal(t, 4, denver.ReadingCount)
}

func TestComputeStats_Variability(t *testing.T) {
	tests := []struct {
		name  string
		temps []float64
		want  float64
	}{
		{"single reading", []float64{72}, 0},
		{"identical readings", []float64{72, 72, 72}, 0},
		{"symmetric spread", []float64{0, 10}, 5},
		{"wider spread", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readings := make([]CityReading, len(tt.temps))
			for i, temp := range tt.temps {
				readings[i] = CityReading{ReadingDate: day(i + 1), City: "Fairbanks", Temperature: temp}
			}

			stats := ComputeStats(readings, ComputeBaselines(readings))

			require.Contains(t, stats, "Fairbanks")
			assert.Equal(t, tt.want, stats["Fairbanks"].StdDev)
			assert.GreaterOrEqual(t, stats["Fairbanks"].StdDev, 0.0)
			assert.Equal(t, len(tt.temps), stats["Fairbanks"].ReadingCount)
		})
	}
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Empty(t, ComputeStats(nil, nil))
}

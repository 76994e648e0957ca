package domain

import "math"

// ComputeBaselines groups the joined readings by city and returns each
// city's arithmetic mean temperature. Only cities with at least one
// contributing reading appear in the result; there is no "empty city" row.
func ComputeBaselines(readings []CityReading) map[string]CityBaseline {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range readings {
		sums[r.City] += r.Temperature
		counts[r.City]++
	}

	baselines := make(map[string]CityBaseline, len(counts))
	for city, n := range counts {
		baselines[city] = CityBaseline{City: city, AvgTemp: sums[city] / float64(n)}
	}
	return baselines
}

// ComputeStats re-joins each reading to its city's baseline and adds the
// population standard deviation: the square root of the mean squared
// deviation, divisor N (the city's reading count), not N-1. A city with a
// single reading therefore has StdDev 0, a valid result rather than an
// error.
func ComputeStats(readings []CityReading, baselines map[string]CityBaseline) map[string]CityStats {
	sumSquares := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range readings {
		b, ok := baselines[r.City]
		if !ok {
			continue
		}
		d := r.Temperature - b.AvgTemp
		sumSquares[r.City] += d * d
		counts[r.City]++
	}

	stats := make(map[string]CityStats, len(counts))
	for city, n := range counts {
		stats[city] = CityStats{
			City:         city,
			AvgTemp:      baselines[city].AvgTemp,
			StdDev:       math.Sqrt(sumSquares[city] / float64(n)),
			ReadingCount: n,
		}
	}
	return stats
}

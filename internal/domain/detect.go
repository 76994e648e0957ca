package domain

import (
	"math"
	"sort"
)

// scoredRecord pairs an anomaly record with its unrounded z-score, which
// drives ordering after the record's ZScore has already been rounded.
type scoredRecord struct {
	record AnomalyRecord
	score  float64
}

// DetectAnomalies scores every joined reading against its city's statistics
// and returns the readings whose |z| exceeds the threshold, most extreme
// first. The comparison uses the unrounded score; only the reported ZScore
// field is rounded. Ties in |z| keep their input order, so the result is
// deterministic for a given dataset.
//
// Readings for cities with StdDev 0 are excluded from scoring entirely: no
// variability means nothing to compare against. ZeroVarianceCities lists
// the cities skipped this way.
func DetectAnomalies(readings []CityReading, stats map[string]CityStats, threshold float64) []AnomalyRecord {
	var flagged []scoredRecord
	for _, r := range readings {
		s, ok := stats[r.City]
		if !ok || s.StdDev == 0 {
			continue
		}
		z := (r.Temperature - s.AvgTemp) / s.StdDev
		if math.Abs(z) <= threshold {
			continue
		}
		flagged = append(flagged, scoredRecord{
			record: AnomalyRecord{
				ReadingDate: r.ReadingDate,
				City:        r.City,
				Temperature: r.Temperature,
				AvgTemp:     s.AvgTemp,
				StdDev:      s.StdDev,
				ZScore:      roundScore(z),
			},
			score: z,
		})
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		return math.Abs(flagged[i].score) > math.Abs(flagged[j].score)
	})

	anomalies := make([]AnomalyRecord, len(flagged))
	for i, f := range flagged {
		anomalies[i] = f.record
	}
	return anomalies
}

// ZeroVarianceCities returns the sorted names of cities whose readings are
// all identical (StdDev 0) and were therefore excluded from scoring.
func ZeroVarianceCities(stats map[string]CityStats) []string {
	var cities []string
	for city, s := range stats {
		if s.StdDev == 0 {
			cities = append(cities, city)
		}
	}
	sort.Strings(cities)
	return cities
}

// roundScore rounds a z-score to two decimals with halves away from zero,
// matching SQL ROUND. Applied to the reported value only, never to the
// threshold comparison.
func roundScore(z float64) float64 {
	return math.Round(z*100) / 100
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Analyze runs the full derivation chain over a dataset and assembles the
// report: join once, compute baselines, add variability, detect anomalies.
// Every derived table is recomputed from scratch; nothing is cached between
// runs. An empty dataset produces an empty report, not an error.
func Analyze(ds Dataset, threshold float64) Report {
	joined, unresolved := JoinReadings(ds)
	baselines := ComputeBaselines(joined)
	stats := ComputeStats(joined, baselines)
	anomalies := DetectAnomalies(joined, stats, threshold)

	return Report{
		RunID:              uuid.NewString(),
		GeneratedAt:        clock.Now().UTC(),
		Threshold:          threshold,
		ReadingCount:       len(ds.Readings),
		UnresolvedCount:    unresolved,
		Cities:             sortedStats(stats),
		ZeroVarianceCities: ZeroVarianceCities(stats),
		Anomalies:          anomalies,
	}
}

// sortedStats flattens the stats map into a slice ordered by city name, so
// serialized reports never depend on map iteration order.
func sortedStats(stats map[string]CityStats) []CityStats {
	cities := make([]CityStats, 0, len(stats))
	for _, s := range stats {
		cities = append(cities, s)
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].City < cities[j].City })
	return cities
}

// AnomalyID produces a deterministic short ID from an anomaly's identifying
// fields. Re-analyzing the same dataset yields the same IDs, so consumers
// keyed on it (the Kafka sink, downstream upserts) stay idempotent across
// replays.
func AnomalyID(rec AnomalyRecord) string {
	input := fmt.Sprintf("%s|%s|%g", rec.City, rec.ReadingDate.Format(DateFormat), rec.Temperature)
	hash := sha256.Sum256([]byte(input))
	return "anom-" + hex.EncodeToString(hash[:8])
}

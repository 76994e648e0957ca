// Command genmock generates a reproducible weather dataset fixture in both
// CSV and SQLite form, plus the expected analysis report for it. It runs
// the actual analysis stages, so the fixture and the expectation can never
// drift apart.
//
// Usage:
//
//	go run ./cmd/genmock -out data -cities 6 -readings 30 -outliers 0.05
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/driftlab/weather-anomaly/internal/domain"
	"github.com/driftlab/weather-anomaly/internal/store/csvfile"
	"github.com/driftlab/weather-anomaly/internal/store/sqlite"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var cityNames = []string{
	"Denver", "Oslo", "Austin", "Fairbanks", "Lisbon",
	"Nairobi", "Sapporo", "Perth", "Quito", "Tromso",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "output directory for the fixture")
	cities := flag.Int("cities", 6, "number of cities to generate")
	readings := flag.Int("readings", 30, "readings per city")
	outliers := flag.Float64("outliers", 0.05, "fraction of readings pushed far off the city mean")
	orphans := flag.Int("orphans", 2, "readings referencing stations that do not exist")
	seed := flag.Int64("seed", 42, "random seed")
	threshold := flag.Float64("threshold", 1.0, "z-score threshold for the expected report")
	flag.Parse()

	if *cities < 1 || *readings < 1 {
		return fmt.Errorf("need at least one city and one reading per city")
	}
	if *outliers < 0 || *outliers >= 1 {
		return fmt.Errorf("outlier fraction must be in [0, 1)")
	}
	if *orphans < 0 {
		return fmt.Errorf("orphan count must not be negative")
	}
	if *threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}

	// Fix the clock for a reproducible generated_at timestamp.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.February, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // fixture generation, not crypto

	ds := generateDataset(rng, *cities, *readings, *outliers, *orphans)
	log.Printf("generated dataset: %d readings, %d stations, %d locations",
		len(ds.Readings), len(ds.Stations), len(ds.Locations))

	if err := csvfile.WriteDataset(*out, ds); err != nil {
		return fmt.Errorf("writing CSV dataset: %w", err)
	}
	log.Printf("wrote CSV dataset: %s", *out)

	dbPath := filepath.Join(*out, "weather.db")
	if err := writeSQLite(dbPath, ds); err != nil {
		return fmt.Errorf("writing SQLite dataset: %w", err)
	}
	log.Printf("wrote SQLite dataset: %s", dbPath)

	rep := domain.Analyze(ds, *threshold)
	rep.RunID = "fixture"

	repPath := filepath.Join(*out, "expected_report.json")
	if err := writeJSON(repPath, rep); err != nil {
		return fmt.Errorf("writing expected report: %w", err)
	}
	log.Printf("wrote expected report: %s", repPath)

	printStats(ds, rep)
	return nil
}

func generateDataset(rng *rand.Rand, cities, readingsPerCity int, outlierRate float64, orphans int) domain.Dataset {
	var ds domain.Dataset

	for c := 0; c < cities; c++ {
		locID := fmt.Sprintf("loc-%03d", c)
		ds.Locations = append(ds.Locations, domain.Location{LocationID: locID, City: cityName(c)})

		// One or two stations per city; the analysis aggregates per city,
		// so multi-station cities exercise the join.
		stations := 1 + rng.Intn(2)
		stationIDs := make([]string, stations)
		for s := 0; s < stations; s++ {
			id := fmt.Sprintf("st-%03d-%d", c, s)
			stationIDs[s] = id
			ds.Stations = append(ds.Stations, domain.Station{StationID: id, LocationID: locID})
		}

		mean := -5 + rng.Float64()*35
		spread := 2 + rng.Float64()*6
		flip := 1.0
		for r := 0; r < readingsPerCity; r++ {
			temp := mean + rng.NormFloat64()*spread
			if rng.Float64() < outlierRate {
				// Push outliers 4 to 6 sigma out, alternating sign.
				temp = mean + flip*(4+2*rng.Float64())*spread
				flip = -flip
			}
			ds.Readings = append(ds.Readings, domain.Reading{
				ReadingDate: baseDate.AddDate(0, 0, r),
				StationID:   stationIDs[r%stations],
				Temperature: math.Round(temp*10) / 10,
			})
		}
	}

	for o := 0; o < orphans; o++ {
		ds.Readings = append(ds.Readings, domain.Reading{
			ReadingDate: baseDate,
			StationID:   fmt.Sprintf("st-ghost-%d", o),
			Temperature: 20 + float64(o),
		})
	}
	return ds
}

func cityName(i int) string {
	if i < len(cityNames) {
		return cityNames[i]
	}
	return fmt.Sprintf("%s-%d", cityNames[i%len(cityNames)], i/len(cityNames))
}

func writeSQLite(path string, ds domain.Dataset) error {
	// Start fresh so reruns do not accumulate rows.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := sqlite.Migrate(db, logger); err != nil {
		return err
	}
	return sqlite.NewStore(db, logger).ImportDataset(context.Background(), ds)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(ds domain.Dataset, rep domain.Report) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Dataset: %d readings, %d stations, %d locations\n",
		len(ds.Readings), len(ds.Stations), len(ds.Locations))
	fmt.Printf("Resolved: %d, unresolved: %d\n", rep.ReadingCount-rep.UnresolvedCount, rep.UnresolvedCount)
	fmt.Printf("Cities: %d (zero variance: %d)\n", len(rep.Cities), len(rep.ZeroVarianceCities))
	fmt.Printf("Anomalies over |z| > %g: %d\n", rep.Threshold, len(rep.Anomalies))
	if len(rep.Anomalies) > 0 {
		top := rep.Anomalies[0]
		fmt.Printf("Most extreme: %s %s %.1f (avg %.1f, z %+.2f)\n",
			top.City, top.ReadingDate.Format(domain.DateFormat), top.Temperature, top.AvgTemp, top.ZScore)
	}
}

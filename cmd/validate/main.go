// Command validate checks a weather dataset fixture end to end: key
// integrity of the three relations, the derived per-city statistics, the
// anomaly scores and their ordering, and optionally that the SQLite copy
// and the expected report fixture agree with the CSV dataset.
//
// Usage:
//
//	go run ./cmd/validate -csv data -db data/weather.db -expected data/expected_report.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	"github.com/driftlab/weather-anomaly/internal/domain"
	"github.com/driftlab/weather-anomaly/internal/store/csvfile"
	"github.com/driftlab/weather-anomaly/internal/store/sqlite"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvDir := flag.String("csv", "", "directory containing the CSV dataset")
	dbPath := flag.String("db", "", "optional SQLite database to check against the CSV dataset")
	expected := flag.String("expected", "", "optional expected report JSON fixture")
	threshold := flag.Float64("threshold", 1.0, "z-score threshold the report is built with")
	flag.Parse()

	if *csvDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvDir, *dbPath, *expected, *threshold); code != 0 {
		os.Exit(code)
	}
}

func run(csvDir, dbPath, expectedPath string, threshold float64) int {
	// Fix the clock to match genmock so generated_at comparisons hold.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.February, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Weather Dataset Integrity Validation ===")
	fmt.Println()

	ds, err := csvfile.NewLoader(csvDir, slog.New(slog.NewTextHandler(io.Discard, nil))).LoadDataset(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV dataset: %v\n", err)
		return 1
	}

	rep := domain.Analyze(ds, threshold)

	// ── Run validation phases ──
	phases := []*phase{
		validateReferentialIntegrity(ds),
		validateDerivedInvariants(ds, rep),
		validateAnomalyConsistency(rep, threshold),
	}
	if dbPath != "" {
		phases = append(phases, validateStoreParity(ds, dbPath))
	}
	if expectedPath != "" {
		phases = append(phases, validateExpectedReport(rep, expectedPath))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Dataset: %d readings, %d stations, %d locations; %d cities, %d anomalies\n",
		len(ds.Readings), len(ds.Stations), len(ds.Locations), len(rep.Cities), len(rep.Anomalies))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Referential Integrity ──
// Duplicate keys are data bugs; readings or stations that do not resolve
// are legal and only reported as a note.

func validateReferentialIntegrity(ds domain.Dataset) *phase {
	p := &phase{name: "Phase 1: Referential Integrity (keys)"}

	seenStations := map[string]bool{}
	for _, st := range ds.Stations {
		if seenStations[st.StationID] {
			p.errorf("duplicate station_id %q", st.StationID)
		}
		seenStations[st.StationID] = true
	}

	seenLocations := map[string]bool{}
	for _, loc := range ds.Locations {
		if seenLocations[loc.LocationID] {
			p.errorf("duplicate location_id %q", loc.LocationID)
		}
		seenLocations[loc.LocationID] = true
	}

	dangling := 0
	for _, st := range ds.Stations {
		if !seenLocations[st.LocationID] {
			dangling++
		}
	}
	if dangling > 0 {
		fmt.Printf("  Note: %d station(s) reference unknown locations\n", dangling)
	}

	_, unresolved := domain.JoinReadings(ds)
	if unresolved > 0 {
		fmt.Printf("  Note: %d of %d readings do not resolve to a city\n", unresolved, len(ds.Readings))
	}

	return p
}

// ── Phase 2: Derived Invariants ──
// Recomputes the join independently and checks the per-city statistics
// against it.

func validateDerivedInvariants(ds domain.Dataset, rep domain.Report) *phase {
	p := &phase{name: "Phase 2: Derived Invariants (city stats)"}

	joined, unresolved := domain.JoinReadings(ds)
	if rep.ReadingCount != len(ds.Readings) {
		p.errorf("report reading_count %d, dataset has %d", rep.ReadingCount, len(ds.Readings))
	}
	if rep.UnresolvedCount != unresolved {
		p.errorf("report unresolved_count %d, join counted %d", rep.UnresolvedCount, unresolved)
	}

	temps := map[string][]float64{}
	for _, r := range joined {
		temps[r.City] = append(temps[r.City], r.Temperature)
	}
	if len(rep.Cities) != len(temps) {
		p.errorf("report has %d cities, join produced %d", len(rep.Cities), len(temps))
	}

	for i, cs := range rep.Cities {
		if i > 0 && rep.Cities[i-1].City >= cs.City {
			p.errorf("cities not sorted: %q before %q", rep.Cities[i-1].City, cs.City)
		}
		ts, ok := temps[cs.City]
		if !ok {
			p.errorf("city %q has stats but no resolved readings", cs.City)
			continue
		}
		if cs.ReadingCount != len(ts) {
			p.errorf("city %q: reading_count %d, join has %d", cs.City, cs.ReadingCount, len(ts))
		}
		if cs.StdDev < 0 {
			p.errorf("city %q: negative std dev %g", cs.City, cs.StdDev)
		}
		lo, hi, identical := minMaxIdentical(ts)
		if cs.AvgTemp < lo-1e-9 || cs.AvgTemp > hi+1e-9 {
			p.errorf("city %q: avg %g outside [%g, %g]", cs.City, cs.AvgTemp, lo, hi)
		}
		if identical && cs.StdDev != 0 {
			p.errorf("city %q: identical temperatures but std dev %g", cs.City, cs.StdDev)
		}
		if !identical && cs.StdDev == 0 {
			p.errorf("city %q: zero std dev with varying temperatures", cs.City)
		}
	}

	zero := map[string]bool{}
	for _, c := range rep.ZeroVarianceCities {
		zero[c] = true
	}
	for _, cs := range rep.Cities {
		if (cs.StdDev == 0) != zero[cs.City] {
			p.errorf("city %q: std dev %g but zero-variance flag %v", cs.City, cs.StdDev, zero[cs.City])
		}
	}

	return p
}

// ── Phase 3: Anomaly Consistency ──
// Recomputes each anomaly's score from its own fields and checks the
// threshold, the rounding, and the magnitude ordering.

func validateAnomalyConsistency(rep domain.Report, threshold float64) *phase {
	p := &phase{name: "Phase 3: Anomaly Consistency (z-scores)"}

	stats := map[string]domain.CityStats{}
	for _, cs := range rep.Cities {
		stats[cs.City] = cs
	}

	prev := math.Inf(1)
	for i, a := range rep.Anomalies {
		cs, ok := stats[a.City]
		if !ok {
			p.errorf("anomaly %d: city %q has no stats", i, a.City)
			continue
		}
		if !floatEq(a.AvgTemp, cs.AvgTemp) || !floatEq(a.StdDev, cs.StdDev) {
			p.errorf("anomaly %d (%s): avg/std drifted from city stats", i, a.City)
		}
		if a.StdDev == 0 {
			p.errorf("anomaly %d (%s): flagged in a zero-variance city", i, a.City)
			continue
		}

		z := (a.Temperature - a.AvgTemp) / a.StdDev
		if math.Abs(z) <= threshold {
			p.errorf("anomaly %d (%s): |z| %.4f not above threshold %g", i, a.City, math.Abs(z), threshold)
		}
		if want := math.Round(z*100) / 100; !floatEq(a.ZScore, want) {
			p.errorf("anomaly %d (%s): reported z %g, recomputed %g", i, a.City, a.ZScore, want)
		}
		if math.Abs(z) > prev+1e-9 {
			p.errorf("anomaly %d (%s): |z| %.4f out of descending order", i, a.City, math.Abs(z))
		}
		prev = math.Abs(z)
	}

	return p
}

// ── Phase 4: Store Parity ──
// The SQLite copy of the dataset must hold exactly the same rows as the
// CSV files, ignoring row order.

func validateStoreParity(ds domain.Dataset, dbPath string) *phase {
	p := &phase{name: "Phase 4: Store Parity (sqlite vs csv)"}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		p.errorf("open database: %v", err)
		return p
	}
	defer db.Close()

	fromDB, err := sqlite.NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil))).LoadDataset(context.Background())
	if err != nil {
		p.errorf("load database: %v", err)
		return p
	}

	if diff := cmp.Diff(sortDataset(ds), sortDataset(fromDB)); diff != "" {
		p.errorf("datasets differ (-csv +sqlite):\n%s", diff)
	}
	return p
}

// ── Phase 5: Expected Report ──
// Re-derives the report from the CSV dataset and compares it with the
// checked-in fixture. The run id is generated fresh each run and ignored.

func validateExpectedReport(rep domain.Report, path string) *phase {
	p := &phase{name: "Phase 5: Expected Report (fixture)"}

	want, err := loadJSON[domain.Report](path)
	if err != nil {
		p.errorf("load fixture: %v", err)
		return p
	}

	if !rep.GeneratedAt.Equal(want.GeneratedAt) {
		p.errorf("generated_at: expected %s, got %s",
			want.GeneratedAt.Format(time.RFC3339), rep.GeneratedAt.Format(time.RFC3339))
	}
	if !floatEq(rep.Threshold, want.Threshold) {
		p.errorf("threshold: expected %g, got %g", want.Threshold, rep.Threshold)
	}
	if rep.ReadingCount != want.ReadingCount {
		p.errorf("reading_count: expected %d, got %d", want.ReadingCount, rep.ReadingCount)
	}
	if rep.UnresolvedCount != want.UnresolvedCount {
		p.errorf("unresolved_count: expected %d, got %d", want.UnresolvedCount, rep.UnresolvedCount)
	}

	compareCities(p, want.Cities, rep.Cities)

	if diff := cmp.Diff(want.ZeroVarianceCities, rep.ZeroVarianceCities); diff != "" {
		p.errorf("zero_variance_cities differ (-want +got):\n%s", diff)
	}

	compareAnomalies(p, want.Anomalies, rep.Anomalies)

	return p
}

func compareCities(p *phase, want, got []domain.CityStats) {
	if len(want) != len(got) {
		p.errorf("cities: expected %d, got %d", len(want), len(got))
		return
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.City != g.City {
			p.errorf("city %d: expected %q, got %q", i, w.City, g.City)
			continue
		}
		if !floatEq(w.AvgTemp, g.AvgTemp) {
			p.errorf("city %s: avg_temp expected %g, got %g", w.City, w.AvgTemp, g.AvgTemp)
		}
		if !floatEq(w.StdDev, g.StdDev) {
			p.errorf("city %s: std_dev expected %g, got %g", w.City, w.StdDev, g.StdDev)
		}
		if w.ReadingCount != g.ReadingCount {
			p.errorf("city %s: reading_count expected %d, got %d", w.City, w.ReadingCount, g.ReadingCount)
		}
	}
}

func compareAnomalies(p *phase, want, got []domain.AnomalyRecord) {
	if len(want) != len(got) {
		p.errorf("anomalies: expected %d, got %d", len(want), len(got))
		return
	}
	for i := range want {
		w, g := want[i], got[i]
		if !w.ReadingDate.Equal(g.ReadingDate) || w.City != g.City {
			p.errorf("anomaly %d: expected %s %s, got %s %s", i,
				w.City, w.ReadingDate.Format(domain.DateFormat),
				g.City, g.ReadingDate.Format(domain.DateFormat))
			continue
		}
		if !floatEq(w.Temperature, g.Temperature) || !floatEq(w.AvgTemp, g.AvgTemp) || !floatEq(w.StdDev, g.StdDev) {
			p.errorf("anomaly %d (%s): temperature or stats mismatch", i, w.City)
		}
		if !floatEq(w.ZScore, g.ZScore) {
			p.errorf("anomaly %d (%s): z_score expected %g, got %g", i, w.City, w.ZScore, g.ZScore)
		}
	}
}

// ── Helpers ──

func loadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

func sortDataset(ds domain.Dataset) domain.Dataset {
	out := domain.Dataset{
		Readings:  append([]domain.Reading(nil), ds.Readings...),
		Stations:  append([]domain.Station(nil), ds.Stations...),
		Locations: append([]domain.Location(nil), ds.Locations...),
	}
	sort.Slice(out.Readings, func(i, j int) bool {
		a, b := out.Readings[i], out.Readings[j]
		if !a.ReadingDate.Equal(b.ReadingDate) {
			return a.ReadingDate.Before(b.ReadingDate)
		}
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		return a.Temperature < b.Temperature
	})
	sort.Slice(out.Stations, func(i, j int) bool {
		return out.Stations[i].StationID < out.Stations[j].StationID
	})
	sort.Slice(out.Locations, func(i, j int) bool {
		return out.Locations[i].LocationID < out.Locations[j].LocationID
	})
	return out
}

func minMaxIdentical(ts []float64) (lo, hi float64, identical bool) {
	lo, hi = ts[0], ts[0]
	identical = true
	for _, t := range ts[1:] {
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
		if t != ts[0] {
			identical = false
		}
	}
	return lo, hi, identical
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

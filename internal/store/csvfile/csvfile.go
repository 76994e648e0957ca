package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/driftlab/weather-anomaly/internal/domain"
)

// Relation file names expected under the dataset directory.
const (
	readingsFile  = "readings.csv"
	stationsFile  = "stations.csv"
	locationsFile = "locations.csv"
)

// Loader reads the three relation files from a directory. Columns are
// located by header name, so column order in the files is free. It
// implements pipeline.DatasetLoader.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a Loader for the dataset directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

// LoadDataset materializes the three relations in file order. Malformed
// rows are load errors naming the file and line; a file with only a header
// row yields an empty relation, which is valid input.
func (l *Loader) LoadDataset(_ context.Context) (domain.Dataset, error) {
	readings, err := loadReadings(filepath.Join(l.dir, readingsFile))
	if err != nil {
		return domain.Dataset{}, err
	}
	stations, err := loadStations(filepath.Join(l.dir, stationsFile))
	if err != nil {
		return domain.Dataset{}, err
	}
	locations, err := loadLocations(filepath.Join(l.dir, locationsFile))
	if err != nil {
		return domain.Dataset{}, err
	}

	l.logger.Debug("dataset loaded",
		"dir", l.dir,
		"readings", len(readings),
		"stations", len(stations),
		"locations", len(locations),
	)
	return domain.Dataset{Readings: readings, Stations: stations, Locations: locations}, nil
}

// row is a parsed CSV row with field values keyed by header name and the
// 1-based file line for error reporting.
type row struct {
	line   int
	fields map[string]string
}

func readRows(path string, required ...string) ([]row, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: missing header row", name)
	}

	colIdx := map[string]int{}
	for i, h := range all[0] {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", name, col)
		}
	}

	rows := make([]row, 0, len(all)-1)
	for i, rec := range all[1:] {
		fields := make(map[string]string, len(colIdx))
		for col, idx := range colIdx {
			if idx < len(rec) {
				fields[col] = strings.TrimSpace(rec[idx])
			}
		}
		rows = append(rows, row{line: i + 2, fields: fields})
	}
	return rows, nil
}

func loadReadings(path string) ([]domain.Reading, error) {
	rows, err := readRows(path, "reading_date", "station_id", "temperature")
	if err != nil {
		return nil, err
	}

	readings := make([]domain.Reading, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(domain.DateFormat, r.fields["reading_date"])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: parse reading_date %q: %w", readingsFile, r.line, r.fields["reading_date"], err)
		}
		temp, err := strconv.ParseFloat(r.fields["temperature"], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: parse temperature %q: %w", readingsFile, r.line, r.fields["temperature"], err)
		}
		if r.fields["station_id"] == "" {
			return nil, fmt.Errorf("%s line %d: empty station_id", readingsFile, r.line)
		}
		readings = append(readings, domain.Reading{
			ReadingDate: date,
			StationID:   r.fields["station_id"],
			Temperature: temp,
		})
	}
	return readings, nil
}

func loadStations(path string) ([]domain.Station, error) {
	rows, err := readRows(path, "station_id", "location_id")
	if err != nil {
		return nil, err
	}

	stations := make([]domain.Station, 0, len(rows))
	for _, r := range rows {
		if r.fields["station_id"] == "" || r.fields["location_id"] == "" {
			return nil, fmt.Errorf("%s line %d: empty key", stationsFile, r.line)
		}
		stations = append(stations, domain.Station{
			StationID:  r.fields["station_id"],
			LocationID: r.fields["location_id"],
		})
	}
	return stations, nil
}

func loadLocations(path string) ([]domain.Location, error) {
	rows, err := readRows(path, "location_id", "city")
	if err != nil {
		return nil, err
	}

	locations := make([]domain.Location, 0, len(rows))
	for _, r := range rows {
		if r.fields["location_id"] == "" || r.fields["city"] == "" {
			return nil, fmt.Errorf("%s line %d: empty key", locationsFile, r.line)
		}
		locations = append(locations, domain.Location{
			LocationID: r.fields["location_id"],
			City:       r.fields["city"],
		})
	}
	return locations, nil
}

// WriteDataset writes the three relation files to dir, creating the
// directory if needed. Temperatures are formatted to round-trip exactly
// through loadReadings.
func WriteDataset(dir string, ds domain.Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	readings := make([][]string, len(ds.Readings))
	for i, r := range ds.Readings {
		readings[i] = []string{
			r.ReadingDate.Format(domain.DateFormat),
			r.StationID,
			strconv.FormatFloat(r.Temperature, 'g', -1, 64),
		}
	}
	if err := writeCSV(filepath.Join(dir, readingsFile), []string{"reading_date", "station_id", "temperature"}, readings); err != nil {
		return err
	}

	stations := make([][]string, len(ds.Stations))
	for i, s := range ds.Stations {
		stations[i] = []string{s.StationID, s.LocationID}
	}
	if err := writeCSV(filepath.Join(dir, stationsFile), []string{"station_id", "location_id"}, stations); err != nil {
		return err
	}

	locations := make([][]string, len(ds.Locations))
	for i, l := range ds.Locations {
		locations[i] = []string{l.LocationID, l.City}
	}
	return writeCSV(filepath.Join(dir, locationsFile), []string{"location_id", "city"}, locations)
}

func writeCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftlab/weather-anomaly/internal/domain"
)

//go:embed sql/select_readings.sql
var selectReadingsSQL string

//go:embed sql/select_stations.sql
var selectStationsSQL string

//go:embed sql/select_locations.sql
var selectLocationsSQL string

//go:embed sql/insert_reading.sql
var insertReadingSQL string

//go:embed sql/insert_station.sql
var insertStationSQL string

//go:embed sql/insert_location.sql
var insertLocationSQL string

// Store loads and imports the weather dataset. It implements
// pipeline.DatasetLoader.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a Store on an open database. Callers are expected to
// have run Migrate first.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// LoadDataset materializes the three relations. Readings come back
// ordered by date, station and insert order, so repeated loads of the
// same database produce identical datasets.
func (s *Store) LoadDataset(ctx context.Context) (domain.Dataset, error) {
	readings, err := s.loadReadings(ctx)
	if err != nil {
		return domain.Dataset{}, err
	}
	stations, err := s.loadStations(ctx)
	if err != nil {
		return domain.Dataset{}, err
	}
	locations, err := s.loadLocations(ctx)
	if err != nil {
		return domain.Dataset{}, err
	}

	s.logger.Debug("dataset loaded",
		"readings", len(readings),
		"stations", len(stations),
		"locations", len(locations),
	)
	return domain.Dataset{Readings: readings, Stations: stations, Locations: locations}, nil
}

func (s *Store) loadReadings(ctx context.Context) ([]domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx, selectReadingsSQL)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var readings []domain.Reading
	for rows.Next() {
		var (
			dateStr   string
			stationID string
			temp      float64
		)
		if err := rows.Scan(&dateStr, &stationID, &temp); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		date, err := time.Parse(domain.DateFormat, dateStr)
		if err != nil {
			return nil, fmt.Errorf("reading for station %s: parse reading_date %q: %w", stationID, dateStr, err)
		}
		readings = append(readings, domain.Reading{
			ReadingDate: date,
			StationID:   stationID,
			Temperature: temp,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return readings, nil
}

func (s *Store) loadStations(ctx context.Context) ([]domain.Station, error) {
	rows, err := s.db.QueryContext(ctx, selectStationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var stations []domain.Station
	for rows.Next() {
		var st domain.Station
		if err := rows.Scan(&st.StationID, &st.LocationID); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	return stations, nil
}

func (s *Store) loadLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, selectLocationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var locations []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.LocationID, &loc.City); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locations, nil
}

// ImportDataset replaces the stored relations with ds in a single
// transaction.
func (s *Store) ImportDataset(ctx context.Context, ds domain.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"readings", "stations", "locations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertLocation, err := tx.PrepareContext(ctx, insertLocationSQL)
	if err != nil {
		return fmt.Errorf("prepare insert location: %w", err)
	}
	defer insertLocation.Close()
	for _, loc := range ds.Locations {
		if _, err := insertLocation.ExecContext(ctx, loc.LocationID, loc.City); err != nil {
			return fmt.Errorf("insert location %s: %w", loc.LocationID, err)
		}
	}

	insertStation, err := tx.PrepareContext(ctx, insertStationSQL)
	if err != nil {
		return fmt.Errorf("prepare insert station: %w", err)
	}
	defer insertStation.Close()
	for _, st := range ds.Stations {
		if _, err := insertStation.ExecContext(ctx, st.StationID, st.LocationID); err != nil {
			return fmt.Errorf("insert station %s: %w", st.StationID, err)
		}
	}

	insertReading, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("prepare insert reading: %w", err)
	}
	defer insertReading.Close()
	for _, r := range ds.Readings {
		if _, err := insertReading.ExecContext(ctx, r.ReadingDate.Format(domain.DateFormat), r.StationID, r.Temperature); err != nil {
			return fmt.Errorf("insert reading for station %s: %w", r.StationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	s.logger.Info("dataset imported",
		"readings", len(ds.Readings),
		"stations", len(ds.Stations),
		"locations", len(ds.Locations),
	)
	return nil
}

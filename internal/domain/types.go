package domain

import "time"

// DateFormat is the wire layout for reading dates in CSV files and the
// SQLite store.
const DateFormat = "2006-01-02"

// Reading is one temperature observation reported by a station.
type Reading struct {
	ReadingDate time.Time
	StationID   string
	Temperature float64
}

// Station ties a reporting station to the location it serves.
type Station struct {
	StationID  string
	LocationID string
}

// Location names the city a location identifier belongs to.
type Location struct {
	LocationID string
	City       string
}

// Dataset is the three input relations materialized together, as handed
// over by a store. Treated as read-only for the duration of a run.
type Dataset struct {
	Readings  []Reading
	Stations  []Station
	Locations []Location
}

// CityReading is a reading resolved to its city through the station and
// location relations. Produced once by JoinReadings and shared by every
// downstream stage.
type CityReading struct {
	ReadingDate time.Time
	StationID   string
	City        string
	Temperature float64
}

// CityBaseline is the arithmetic mean temperature for one city. Cities
// with no resolved readings have no baseline.
type CityBaseline struct {
	City    string
	AvgTemp float64
}

// CityStats extends the baseline with the population standard deviation
// and the number of readings that contributed.
type CityStats struct {
	City         string  `json:"city"`
	AvgTemp      float64 `json:"avg_temp"`
	StdDev       float64 `json:"std_dev"`
	ReadingCount int     `json:"reading_count"`
}

// AnomalyRecord is one reading whose temperature deviates from its city's
// baseline by more than the threshold. ZScore is rounded to two decimals;
// the unrounded score is used for filtering and ordering only.
type AnomalyRecord struct {
	ReadingDate time.Time `json:"reading_date"`
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	AvgTemp     float64   `json:"avg_temp"`
	StdDev      float64   `json:"std_dev"`
	ZScore      float64   `json:"z_score"`
}

// Report is the complete result of one analysis run: provenance, totals,
// the per-city statistics and the detected anomalies.
type Report struct {
	RunID              string          `json:"run_id"`
	GeneratedAt        time.Time       `json:"generated_at"`
	Threshold          float64         `json:"threshold"`
	ReadingCount       int             `json:"reading_count"`
	UnresolvedCount    int             `json:"unresolved_count"`
	Cities             []CityStats     `json:"cities"`
	ZeroVarianceCities []string        `json:"zero_variance_cities,omitempty"`
	Anomalies          []AnomalyRecord `json:"anomalies"`
}

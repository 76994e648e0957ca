// Package domain implements the per-city temperature anomaly model.
//
// # Input Relations
//
// A dataset is three relations, keyed by plain string identifiers:
//
//	Reading  {reading_date, station_id, temperature}
//	Station  {station_id, location_id}
//	Location {location_id, city}
//
// Stations report temperatures; locations name the city a station serves.
// The relations arrive fully materialized from a store (SQLite or CSV) and
// are never mutated here.
//
// # Derivation Stages
//
// Analysis is a fixed chain of pure functions, each consuming the previous
// stage's output:
//
//	JoinReadings     resolves reading → station → location → city once,
//	                 producing the flat CityReading relation every later
//	                 stage shares. Readings whose chain does not resolve
//	                 are dropped and counted, never treated as an error.
//	ComputeBaselines groups by city and takes the arithmetic mean.
//	ComputeStats     adds the population standard deviation (divisor is
//	                 the city's reading count, not count-1).
//	DetectAnomalies  scores each reading as z = (temp - mean) / stddev and
//	                 keeps those with |z| above the threshold.
//
// [Analyze] runs the chain end to end and assembles a [Report].
//
// # Scoring Conventions
//
// Thresholding and ordering always use the unrounded z-score. Rounding to
// two decimals (halves away from zero, as SQL ROUND does) happens only on
// the reported value, so a reading at |z| = 1.004 stays out at threshold
// 1.0 even though it would print as 1.00.
//
// Cities whose readings are all identical have a standard deviation of
// zero. Their readings are excluded from scoring entirely, since with no
// variability there is nothing to compare against, and the city names are
// surfaced via [ZeroVarianceCities] so reports can account for them.
//
// # Determinism
//
// The same dataset and threshold always produce the same derived tables in
// the same order: anomalies sort by |z| descending with input order
// breaking ties, city listings sort by name, and map iteration order never
// reaches an output. Report identifiers are the one exception (fresh UUID
// per run); [AnomalyID] exists for consumers that need a stable per-record
// key across runs.
package domain

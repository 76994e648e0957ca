package domain

// JoinReadings resolves each reading's station_id through the Station and
// Location relations and returns the flat city-reading relation, preserving
// the input reading order. The second return value counts readings whose
// chain did not resolve; those are excluded, inner-join style, rather than
// reported as errors.
//
// Key matching is exact and case-sensitive. A duplicate station_id or
// location_id keeps its last occurrence; cmd/validate flags duplicates so
// they never reach analysis unnoticed.
func JoinReadings(ds Dataset) ([]CityReading, int) {
	cityByLocation := make(map[string]string, len(ds.Locations))
	for _, l := range ds.Locations {
		cityByLocation[l.LocationID] = l.City
	}

	// A station whose location_id is dangling is itself unresolvable, so
	// its readings count as unresolved too.
	cityByStation := make(map[string]string, len(ds.Stations))
	for _, s := range ds.Stations {
		if city, ok := cityByLocation[s.LocationID]; ok {
			cityByStation[s.StationID] = city
		}
	}

	joined := make([]CityReading, 0, len(ds.Readings))
	unresolved := 0
	for _, r := range ds.Readings {
		city, ok := cityByStation[r.StationID]
		if !ok {
			unresolved++
			continue
		}
		joined = append(joined, CityReading{
			ReadingDate: r.ReadingDate,
			StationID:   r.StationID,
			City:        city,
			Temperature: r.Temperature,
		})
	}
	return joined, unresolved
}

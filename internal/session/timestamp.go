package session

import "time"

// ExtractTimestamp pulls the payload's embedded timestamp out of an
// operation data map, in unix seconds.
//
// Two agent conventions exist: most feeds carry an epoch "timestamp"
// field; antenna control units instead report a "Year" plus a "Time"
// day-of-year fraction from their own clock. When both are present
// the epoch field wins, since it is router-synchronized. Returns 0
// when neither convention is satisfied.
func ExtractTimestamp(data map[string]any) float64 {
	if data == nil {
		return 0
	}

	if ts, ok := toFloat(data["timestamp"]); ok && ts > 0 {
		return ts
	}

	year, okY := toFloat(data["Year"])
	day, okD := toFloat(data["Time"])
	if okY && okD && year > 0 {
		return yearDayToUnix(int(year), day)
	}

	return 0
}

// yearDayToUnix converts a year and fractional day-of-year (1-based,
// UTC) into unix seconds.
func yearDayToUnix(year int, day float64) float64 {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return float64(jan1.Unix()) + (day-1)*86400
}

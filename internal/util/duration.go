// Package util provides shared helpers for ocsdeck.
package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseDuration parses human-friendly duration strings used in deck
// config: poll intervals and staleness thresholds.
// Supports single-unit forms (500ms, 30s, 5m, 2h, 1d) and standard
// Go durations (1h30m). Bare numbers are rejected so a threshold is
// never silently misread in the wrong unit.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	if _, err := strconv.Atoi(s); err == nil {
		return 0, fmt.Errorf("duration %q needs a unit (500ms, 30s, 5m)", s)
	}

	unit := s[len(s)-1]
	value, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		// Composite forms like 1h30m or 1.5s fall through to Go.
		return time.ParseDuration(s)
	}

	switch unit {
	case 's':
		return time.Duration(value * float64(time.Second)), nil
	case 'm':
		return time.Duration(value * float64(time.Minute)), nil
	case 'h':
		return time.Duration(value * float64(time.Hour)), nil
	case 'd':
		return time.Duration(value * 24 * float64(time.Hour)), nil
	default:
		return time.ParseDuration(s)
	}
}

// MustParseDuration parses a duration or panics; for values known
// valid at compile time.
func MustParseDuration(s string) time.Duration {
	d, err := ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q: %v", s, err))
	}
	return d
}

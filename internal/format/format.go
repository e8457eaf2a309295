// Package format holds the pure display formatters: fixed-width
// padding, relative-age strings, and timestamp rendering. No state,
// no transport knowledge.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// Pad right-pads s with spaces to the given display width. Strings
// already wider than width are returned unchanged. Width is measured
// in terminal cells, not bytes, so degree signs and other wide runes
// line up.
func Pad(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// PadLeft left-pads s with spaces to the given display width.
func PadLeft(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return strings.Repeat(" ", gap) + s
}

// PadNum renders v with prec decimals, left-padded to width. NaN and
// infinities render as a placeholder dash field.
func PadNum(v float64, width, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return PadLeft("--", width)
	}
	return PadLeft(fmt.Sprintf("%.*f", prec, v), width)
}

// Age renders a duration in seconds as a relative-age string:
//
//	0.4     -> "now"
//	12.3    -> "12.3s ago"
//	220     -> "3m40s ago"
//	7500    -> "2h05m ago"
//	200000  -> "2d07h ago"
//
// Negative ages (payload clock ahead of local clock) render as
// "+Ns", flagging the skew instead of hiding it.
func Age(seconds float64) string {
	if seconds < 0 {
		return fmt.Sprintf("+%.0fs", -seconds)
	}
	switch {
	case seconds < 1:
		return "now"
	case seconds < 60:
		return fmt.Sprintf("%.1fs ago", seconds)
	case seconds < 3600:
		m := int(seconds) / 60
		s := int(seconds) % 60
		return fmt.Sprintf("%dm%02ds ago", m, s)
	case seconds < 86400:
		h := int(seconds) / 3600
		m := (int(seconds) % 3600) / 60
		return fmt.Sprintf("%dh%02dm ago", h, m)
	default:
		d := int(seconds) / 86400
		h := (int(seconds) % 86400) / 3600
		return fmt.Sprintf("%dd%02dh ago", d, h)
	}
}

// Epoch renders a unix-seconds timestamp as a UTC calendar string.
// Zero renders as a placeholder.
func Epoch(ts float64) string {
	if ts <= 0 {
		return "--"
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("2006-01-02 15:04:05")
}

// YearDay renders an agent-clock (year, fractional day-of-year)
// pair, the convention antenna control units report in, as a UTC
// calendar string. Day is 1-based.
func YearDay(year int, day float64) string {
	if year <= 0 {
		return "--"
	}
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Epoch(float64(jan1.Unix()) + (day-1)*86400)
}

package format

import (
	"math"
	"testing"
)

func TestPad(t *testing.T) {
	tests := []struct {
		input string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 5, "abcdef"},
		{"", 3, "   "},
		{"4.2°K", 7, "4.2°K  "}, // degree sign is one cell
	}
	for _, tt := range tests {
		if got := Pad(tt.input, tt.width); got != tt.want {
			t.Errorf("Pad(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
		}
	}
}

func TestPadNum(t *testing.T) {
	tests := []struct {
		v     float64
		width int
		prec  int
		want  string
	}{
		{4.25, 8, 2, "    4.25"},
		{-3.1, 6, 1, "  -3.1"},
		{math.NaN(), 6, 2, "    --"},
		{math.Inf(1), 4, 0, "  --"},
	}
	for _, tt := range tests {
		if got := PadNum(tt.v, tt.width, tt.prec); got != tt.want {
			t.Errorf("PadNum(%v, %d, %d) = %q, want %q", tt.v, tt.width, tt.prec, got, tt.want)
		}
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0.4, "now"},
		{12.3, "12.3s ago"},
		{220, "3m40s ago"},
		{7500, "2h05m ago"},
		{200000, "2d07h ago"},
		{-4, "+4s"},
	}
	for _, tt := range tests {
		if got := Age(tt.seconds); got != tt.want {
			t.Errorf("Age(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestEpoch(t *testing.T) {
	if got := Epoch(0); got != "--" {
		t.Errorf("Epoch(0) = %q, want --", got)
	}
	// 2023-11-14 22:13:20 UTC
	if got := Epoch(1700000000); got != "2023-11-14 22:13:20" {
		t.Errorf("Epoch(1700000000) = %q", got)
	}
}

func TestYearDay(t *testing.T) {
	if got := YearDay(0, 10); got != "--" {
		t.Errorf("YearDay(0, 10) = %q, want --", got)
	}
	// Day 2.5 of 2024 is Jan 2, 12:00 UTC.
	if got := YearDay(2024, 2.5); got != "2024-01-02 12:00:00" {
		t.Errorf("YearDay(2024, 2.5) = %q", got)
	}
}

// Package output formats command results as text or JSON. Every
// command routes its result through a Formatter so robots and
// operators see the same data.
package output

import (
	"encoding/json"
	"io"
	"os"

	"golang.org/x/term"
)

// Format selects between operator text and machine JSON.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Formatter writes command results in one format.
type Formatter struct {
	format Format
	writer io.Writer
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithJSON selects JSON output when enabled is true.
func WithJSON(enabled bool) Option {
	return func(f *Formatter) {
		if enabled {
			f.format = FormatJSON
		} else {
			f.format = FormatText
		}
	}
}

// WithWriter redirects output away from stdout.
func WithWriter(w io.Writer) Option {
	return func(f *Formatter) { f.writer = w }
}

// New creates a text Formatter on stdout, then applies options.
func New(opts ...Option) *Formatter {
	f := &Formatter{format: FormatText, writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DefaultFormatter builds the formatter commands use, honoring the
// resolved JSON flag.
func DefaultFormatter(jsonFlag bool) *Formatter {
	return New(WithJSON(jsonFlag))
}

// IsJSON reports whether the formatter emits JSON.
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// JSON writes v as indented JSON to the formatter's writer.
func (f *Formatter) JSON(v interface{}) error {
	return WriteJSON(f.writer, v, true)
}

// OutputData writes jsonData in JSON mode, otherwise hands the
// writer to textFn for the human rendering.
func (f *Formatter) OutputData(jsonData interface{}, textFn func(w io.Writer) error) error {
	if f.IsJSON() {
		return f.JSON(jsonData)
	}
	return textFn(f.writer)
}

// WriteJSON encodes v to w, indented when pretty is set.
func WriteJSON(w io.Writer, v interface{}, pretty bool) error {
	encoder := json.NewEncoder(w)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// DetectFormat resolves the output format for this invocation.
// Priority: explicit --json flag, then OCSDECK_OUTPUT_FORMAT, then
// pipe detection, then text.
func DetectFormat(jsonFlag bool) Format {
	if jsonFlag {
		return FormatJSON
	}

	switch os.Getenv("OCSDECK_OUTPUT_FORMAT") {
	case "json", "JSON":
		return FormatJSON
	case "text", "TEXT":
		return FormatText
	}

	// Piped output goes to a program, not an operator:
	// ocsdeck status thermo-1 | jq .
	if !IsTerminal() {
		return FormatJSON
	}
	return FormatText
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

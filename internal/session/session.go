// Package session holds the last-known state of remote operations.
//
// A Session carries two clocks on purpose: the timestamp embedded in
// the agent's payload (which comes from a possibly-unsynchronized
// agent clock) and the deck-local time the snapshot was received.
// Staleness checks need the first to judge the data and the second to
// detect a watcher that has stopped delivering.
package session

import (
	"encoding/json"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/ocs"
)

// Status is the server-reported lifecycle state of an operation.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
)

// ParseStatus maps a wire status string onto the known alphabet.
// Anything unrecognized degrades to unknown rather than erroring.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusStarting, StatusRunning, StatusDone:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// Active reports whether the operation is in flight.
func (s Status) Active() bool {
	return s == StatusStarting || s == StatusRunning
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle step. Tasks walk unknown→starting→running→done once;
// processes additionally cycle done→starting on restart. No state
// ever skips from unknown straight to done.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusUnknown:
		return next == StatusStarting
	case StatusStarting:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusDone
	case StatusDone:
		return next == StatusStarting
	}
	return false
}

// Session is the deck's record of one operation's last-known state.
type Session struct {
	Status  Status
	Data    map[string]any
	Message string
	// Success carries the terminal outcome for tasks; nil while the
	// task has not finished (and always nil for processes).
	Success *bool

	// DataTimestamp is the payload's own embedded timestamp in unix
	// seconds, per the agent's clock. Zero when the payload carries
	// no usable timing field.
	DataTimestamp float64

	// LastUpdate is the deck-local receipt time of this snapshot.
	LastUpdate time.Time

	// Seq is the delivery sequence number, when the transport
	// provides one. Zero means unnumbered.
	Seq uint64
}

// FromSnapshot converts a wire snapshot into a Session, stamping it
// with the local receipt time.
func FromSnapshot(snap ocs.SessionSnapshot, receivedAt time.Time) Session {
	return Session{
		Status:        ParseStatus(snap.Status),
		Data:          snap.Data,
		Message:       snap.Message,
		Success:       snap.Success,
		DataTimestamp: ExtractTimestamp(snap.Data),
		LastUpdate:    receivedAt,
		Seq:           snap.Seq,
	}
}

// Field returns a payload field, degrading to placeholder when the
// field is missing or the payload is nil. One absent reading must
// never blank a whole panel.
func (s Session) Field(name string, placeholder any) any {
	if s.Data == nil {
		return placeholder
	}
	v, ok := s.Data[name]
	if !ok || v == nil {
		return placeholder
	}
	return v
}

// NumField returns a numeric payload field as float64, degrading to
// placeholder when missing or non-numeric.
func (s Session) NumField(name string, placeholder float64) float64 {
	v, ok := toFloat(s.Field(name, nil))
	if !ok {
		return placeholder
	}
	return v
}

// StrField returns a string payload field with placeholder fallback.
func (s Session) StrField(name, placeholder string) string {
	if v, ok := s.Field(name, nil).(string); ok {
		return v
	}
	return placeholder
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

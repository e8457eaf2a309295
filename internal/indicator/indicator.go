// Package indicator derives discrete health states from session and
// connection inputs. Derivation is pure: nothing here is persisted,
// every evaluation starts from the current store contents.
package indicator

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/session"
)

// Value is the indicator alphabet shown as status lights.
type Value string

const (
	Good Value = "good"
	Bad  Value = "bad"
	// Warning means degraded but not failed; staleness lands here.
	Warning Value = "warning"
	// NotApplic means the indicator cannot be evaluated because a
	// dependency (router or agent connection) is unmet. Deliberately
	// distinct from Bad: while truth is unknowable the deck must not
	// report false negatives.
	NotApplic Value = "notapplic"
)

// Severity orders values worst-last for aggregation.
func (v Value) Severity() int {
	switch v {
	case Good:
		return 0
	case NotApplic:
		return 1
	case Warning:
		return 2
	case Bad:
		return 3
	}
	return 1
}

// Predicate judges a fresh, running session's payload.
type Predicate func(sess session.Session) bool

// Signal is one row of a panel's declarative signal table.
type Signal struct {
	Name string
	// Op names the governing operation; the signal reads that
	// operation's stored session.
	Op string
	// Threshold is the signal-specific staleness window. Fast local
	// feeds run ~500ms, network-broadcast feeds a few seconds, slow
	// polled inventory feeds minutes.
	Threshold time.Duration
	// Predicate evaluates the payload once the session is running
	// and fresh. A nil predicate reports Good on freshness alone.
	Predicate Predicate
	// Invert flips the predicate's sense for signals whose raw
	// "true" is the displayed indicator's "bad".
	Invert bool
	// TimestampOf overrides where the signal's timestamp comes from.
	// Defaults to the session's extracted payload timestamp.
	TimestampOf func(sess session.Session) float64
}

// Eval derives the signal's value from one session at the given
// wall-clock instant.
func (sig Signal) Eval(sess session.Session, now time.Time) Value {
	if sess.Status != session.StatusRunning {
		return Bad
	}

	ts := sess.DataTimestamp
	if sig.TimestampOf != nil {
		ts = sig.TimestampOf(sess)
	}
	age := float64(now.Unix()) + float64(now.Nanosecond())/1e9 - ts
	if age > sig.Threshold.Seconds() {
		return Warning
	}

	if sig.Predicate == nil {
		return Good
	}
	ok := sig.Predicate(sess)
	if sig.Invert {
		ok = !ok
	}
	if ok {
		return Good
	}
	return Bad
}

// FieldEquals returns a predicate that is true when a payload field
// equals want (string compare for strings, tolerant compare for
// numbers).
func FieldEquals(field string, want any) Predicate {
	return func(sess session.Session) bool {
		switch w := want.(type) {
		case string:
			return sess.StrField(field, "") == w
		case float64:
			return math.Abs(sess.NumField(field, math.NaN())-w) < 1e-9
		case bool:
			v, ok := sess.Field(field, nil).(bool)
			return ok && v == w
		}
		return false
	}
}

// FieldTrue returns a predicate on a boolean payload field; missing
// fields read false.
func FieldTrue(field string) Predicate {
	return func(sess session.Session) bool {
		v, ok := sess.Field(field, nil).(bool)
		return ok && v
	}
}

// Deviates returns a predicate that is true when a numeric field
// strays from baseline by more than tol. Missing fields deviate.
func Deviates(field string, baseline, tol float64) Predicate {
	return func(sess session.Session) bool {
		v := sess.NumField(field, math.NaN())
		if math.IsNaN(v) {
			return true
		}
		return math.Abs(v-baseline) > tol
	}
}

// ActiveActivities reports which of several mutually-describable
// activities are currently in flight: every label whose session
// status is neither unknown nor done, sorted for stable display.
func ActiveActivities(activities map[string]session.Session) []string {
	var active []string
	for label, sess := range activities {
		if sess.Status != session.StatusUnknown && sess.Status != session.StatusDone {
			active = append(active, label)
		}
	}
	sort.Strings(active)
	return active
}

// JoinActivities renders the active set for display; "idle" when
// nothing is in flight.
func JoinActivities(activities map[string]session.Session) string {
	active := ActiveActivities(activities)
	if len(active) == 0 {
		return "idle"
	}
	return strings.Join(active, ", ")
}

package indicator

import "sort"

// Change records one light moving to a new value. From is empty the
// first time a light is seen, so consumers get a baseline.
type Change struct {
	Signal string
	From   Value
	To     Value
}

// Tracker remembers the last reported value of every light and
// reports what moved between successive evaluations.
type Tracker struct {
	last map[string]Value
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]Value)}
}

// Diff compares a report against the previous one and returns the
// lights that changed, in a stable order. The connection lights
// appear under the names "router" and "agent".
func (t *Tracker) Diff(r Report) []Change {
	var changes []Change
	note := func(name string, v Value) {
		prev, seen := t.last[name]
		if seen && prev == v {
			return
		}
		changes = append(changes, Change{Signal: name, From: prev, To: v})
		t.last[name] = v
	}

	note("router", r.Router)
	note("agent", r.Agent)

	names := make([]string, 0, len(r.Signals))
	for name := range r.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		note(name, r.Signals[name])
	}
	return changes
}

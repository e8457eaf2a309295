package indicator

import (
	"time"

	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/session"
)

// Reserved indicator names for the connection chain. Every panel
// carries both ahead of its own signals.
const (
	RouterIndicator = "ocs_connected"
	AgentIndicator  = "agent_connected"
)

// ConnState is the connection dependency chain input: the global
// router link, then the specific agent's registration.
type ConnState struct {
	Router bool
	Agent  bool
}

// Report is one evaluation pass over a panel's signal table.
type Report struct {
	Router  Value
	Agent   Value
	Signals map[string]Value
}

// Worst returns the most severe value in the report.
func (r Report) Worst() Value {
	worst := r.Router
	if r.Agent.Severity() > worst.Severity() {
		worst = r.Agent
	}
	for _, v := range r.Signals {
		if v.Severity() > worst.Severity() {
			worst = v
		}
	}
	return worst
}

// Engine evaluates a panel's signal table against the session store.
type Engine struct {
	signals []Signal
	store   *session.Store
	now     ocs.Clock
}

// NewEngine builds an engine over store. now defaults to time.Now.
func NewEngine(signals []Signal, store *session.Store, now ocs.Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{signals: signals, store: store, now: now}
}

// Signals returns the table rows in declaration order.
func (e *Engine) Signals() []Signal { return e.signals }

// Evaluate derives every indicator for the current instant.
//
// Dependency order: a downed router forces every indicator to
// NotApplic except the router light itself (Bad); an unregistered
// agent does the same one level down. Only with both links up are
// per-signal sessions consulted.
func (e *Engine) Evaluate(conn ConnState) Report {
	report := Report{
		Router:  Good,
		Agent:   Good,
		Signals: make(map[string]Value, len(e.signals)),
	}

	if !conn.Router {
		report.Router = Bad
		report.Agent = NotApplic
		for _, sig := range e.signals {
			report.Signals[sig.Name] = NotApplic
		}
		return report
	}

	if !conn.Agent {
		report.Agent = Bad
		for _, sig := range e.signals {
			report.Signals[sig.Name] = NotApplic
		}
		return report
	}

	now := e.now()
	for _, sig := range e.signals {
		sess, ok := e.store.Get(sig.Op)
		if !ok {
			report.Signals[sig.Name] = Bad
			continue
		}
		report.Signals[sig.Name] = sig.Eval(sess, now)
	}
	return report
}

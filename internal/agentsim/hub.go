package agentsim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/ocs"
)

// startupLag is how long a freshly dispatched operation reports
// "starting" before it reaches "running".
const startupLag = 100 * time.Millisecond

// opKind mirrors the two operation shapes without importing the
// controller.
type opKind int

const (
	kindTask opKind = iota
	kindProcess
)

// opState is the simulated server-side state of one operation.
// Status is derived on read from the dispatch times, so tests with a
// stepped clock walk the full lifecycle deterministically.
type opState struct {
	kind     opKind
	duration time.Duration // task run time
	period   time.Duration // process feed period
	fields   map[string]any

	startedAt  time.Time
	stoppedAt  time.Time
	dispatched bool
	aborted    bool
	seq        uint64
}

// Hub hosts a set of simulated agents behind the ocs.Client
// interface. All state is in-process; "connection" flags are toggles
// for exercising the indicator dominance chain.
type Hub struct {
	root string
	now  ocs.Clock

	mu            sync.Mutex
	agents        map[string]map[string]*opState // instance -> op -> state
	routerUp      bool
	agentsOffline map[string]bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock substitutes the hub's clock (tests).
func WithClock(now ocs.Clock) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub builds a hub for the given address root and agent schemas.
func NewHub(root string, schemas []Schema, opts ...Option) *Hub {
	h := &Hub{
		root:          root,
		now:           time.Now,
		agents:        make(map[string]map[string]*opState),
		routerUp:      true,
		agentsOffline: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}

	for _, schema := range schemas {
		ops := make(map[string]*opState)
		for _, t := range schema.Tasks {
			ops[t.Name] = &opState{
				kind:     kindTask,
				duration: time.Duration(t.Duration * float64(time.Second)),
				fields:   t.Params,
			}
		}
		for _, p := range schema.Processes {
			st := &opState{
				kind:   kindProcess,
				period: time.Duration(p.Period * float64(time.Second)),
				fields: p.Fields,
			}
			if p.AutoStart {
				st.dispatched = true
				st.startedAt = h.now()
			}
			ops[p.Name] = st
		}
		h.agents[schema.Name] = ops
	}
	return h
}

// Addresses lists the simulated agents' full addresses, in no
// particular order.
func (h *Hub) Addresses() []ocs.Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ocs.Address, 0, len(h.agents))
	for name := range h.agents {
		out = append(out, ocs.Address{Root: h.root, Instance: name})
	}
	return out
}

// SetRouterUp toggles the simulated router connection.
func (h *Hub) SetRouterUp(up bool) {
	h.mu.Lock()
	h.routerUp = up
	h.mu.Unlock()
}

// SetAgentOffline toggles one agent's registration.
func (h *Hub) SetAgentOffline(instance string, offline bool) {
	h.mu.Lock()
	h.agentsOffline[instance] = offline
	h.mu.Unlock()
}

func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.routerUp
}

func (h *Hub) AgentConnected(addr ocs.Address) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.routerUp || addr.Root != h.root {
		return false
	}
	if _, ok := h.agents[addr.Instance]; !ok {
		return false
	}
	return !h.agentsOffline[addr.Instance]
}

// resolve looks up an operation's state, enforcing the connection
// toggles the way a real router would.
func (h *Hub) resolve(addr ocs.Address, op string) (*opState, error) {
	if !h.routerUp {
		return nil, ocs.ErrNotConnected
	}
	if addr.Root != h.root {
		return nil, fmt.Errorf("no such realm root %q", addr.Root)
	}
	ops, ok := h.agents[addr.Instance]
	if !ok || h.agentsOffline[addr.Instance] {
		return nil, fmt.Errorf("agent %s is not registered", addr)
	}
	st, ok := ops[op]
	if !ok {
		return nil, fmt.Errorf("agent %s has no operation %q", addr, op)
	}
	return st, nil
}

func (h *Hub) RunTask(ctx context.Context, addr ocs.Address, op string, params ocs.Params) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, err := h.resolve(addr, op)
	if err != nil {
		return ocs.Dispatch("run", addr, op, err)
	}
	if st.kind != kindTask {
		return ocs.Dispatch("run", addr, op, fmt.Errorf("%s is not a task", op))
	}
	st.dispatched = true
	st.aborted = false
	st.startedAt = h.now()
	st.stoppedAt = time.Time{}
	if params != nil {
		merged := make(map[string]any, len(st.fields)+len(params))
		for k, v := range st.fields {
			merged[k] = v
		}
		for k, v := range params {
			merged[k] = v
		}
		st.fields = merged
	}
	return nil
}

func (h *Hub) AbortTask(ctx context.Context, addr ocs.Address, op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, err := h.resolve(addr, op)
	if err != nil {
		return ocs.Dispatch("abort", addr, op, err)
	}
	if st.dispatched && st.stoppedAt.IsZero() {
		st.aborted = true
		st.stoppedAt = h.now()
	}
	return nil
}

func (h *Hub) StartProc(ctx context.Context, addr ocs.Address, op string, params ocs.Params) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, err := h.resolve(addr, op)
	if err != nil {
		return ocs.Dispatch("start", addr, op, err)
	}
	if st.kind != kindProcess {
		return ocs.Dispatch("start", addr, op, fmt.Errorf("%s is not a process", op))
	}
	st.dispatched = true
	st.startedAt = h.now()
	st.stoppedAt = time.Time{}
	return nil
}

// StopProc stops a process; stopping a stopped process is a no-op,
// matching real agents' idempotent stop.
func (h *Hub) StopProc(ctx context.Context, addr ocs.Address, op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, err := h.resolve(addr, op)
	if err != nil {
		return ocs.Dispatch("stop", addr, op, err)
	}
	if st.dispatched && st.stoppedAt.IsZero() {
		st.stoppedAt = h.now()
	}
	return nil
}

func (h *Hub) FetchSession(ctx context.Context, addr ocs.Address, op string) (ocs.SessionSnapshot, ocs.PollMeta, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, err := h.resolve(addr, op)
	if err != nil {
		return ocs.SessionSnapshot{}, ocs.PollMeta{Method: "status", Stat: 1, Msg: err.Error()}, err
	}

	st.seq++
	snap := h.snapshot(st)
	snap.Seq = st.seq
	return snap, ocs.PollMeta{Method: "status"}, nil
}

// snapshot derives the operation's current wire state from dispatch
// times and the hub clock.
func (h *Hub) snapshot(st *opState) ocs.SessionSnapshot {
	now := h.now()

	if !st.dispatched {
		return ocs.SessionSnapshot{Status: "unknown"}
	}

	ended := !st.stoppedAt.IsZero()
	if st.kind == kindTask && !ended && st.duration > 0 && now.Sub(st.startedAt) >= st.duration {
		ended = true
		st.stoppedAt = st.startedAt.Add(st.duration)
	}

	switch {
	case ended && st.kind == kindTask:
		ok := !st.aborted
		msg := "task completed"
		if st.aborted {
			msg = "task aborted"
		}
		return ocs.SessionSnapshot{
			Status:  "done",
			Message: msg,
			Success: &ok,
			Data:    h.feedData(st, st.stoppedAt),
		}
	case ended:
		return ocs.SessionSnapshot{Status: "done", Message: "process stopped", Data: h.feedData(st, st.stoppedAt)}
	case now.Sub(st.startedAt) < startupLag:
		return ocs.SessionSnapshot{Status: "starting"}
	default:
		return ocs.SessionSnapshot{Status: "running", Data: h.feedData(st, now)}
	}
}

// feedData stamps the schema fields with the last sample time: the
// most recent period boundary since the operation started.
func (h *Hub) feedData(st *opState, now time.Time) map[string]any {
	data := make(map[string]any, len(st.fields)+1)
	for k, v := range st.fields {
		data[k] = v
	}

	sample := now
	if st.period > 0 {
		elapsed := now.Sub(st.startedAt)
		ticks := math.Floor(float64(elapsed) / float64(st.period))
		if ticks < 0 {
			ticks = 0
		}
		sample = st.startedAt.Add(time.Duration(ticks * float64(st.period)))
	}
	data["timestamp"] = float64(sample.UnixNano()) / 1e9
	return data
}

// Package ocs defines the boundary between the deck and the pub/sub
// RPC router that hardware-control agents sit behind. The deck core
// never owns wire framing; it talks to agents exclusively through the
// Client interface, and the router-specific encoding lives in the
// websocket adapter.
package ocs

import (
	"context"
	"time"
)

// Params is an operation parameter set. Values may be nested maps for
// composite parameters (a scan's coordinate block, for example).
type Params map[string]any

// SessionSnapshot is the raw server-reported state of one operation,
// exactly as the router delivered it. Conversion into the deck's
// session record (with local receipt time attached) happens in the
// session package.
type SessionSnapshot struct {
	Status  string         `json:"status"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message,omitempty"`
	Success *bool          `json:"success,omitempty"`
	Seq     uint64         `json:"seq,omitempty"`
}

// PollMeta describes the outcome of one poll at the transport level.
// Stat/Msg are about the RPC itself (did the call reach the agent),
// independent of the operation's own status.
type PollMeta struct {
	Method string // RPC method name used for the poll
	Stat   int    // 0 on transport success, nonzero on failure
	Msg    string // transport-level diagnostic, empty on success
}

// OK reports whether the poll itself succeeded.
func (m PollMeta) OK() bool { return m.Stat == 0 }

// Client is the deck's view of the router. All dispatch verbs are
// fire-and-forget: a nil error means the router accepted the call,
// not that the operation completed. Completion is observed later
// through FetchSession polls.
type Client interface {
	// RunTask starts a one-shot task on the addressed agent.
	RunTask(ctx context.Context, addr Address, op string, params Params) error

	// AbortTask requests cancellation of a running task.
	AbortTask(ctx context.Context, addr Address, op string) error

	// StartProc starts a long-running process.
	StartProc(ctx context.Context, addr Address, op string, params Params) error

	// StopProc requests a process stop. Agents treat stop as
	// idempotent; callers may issue it at any time.
	StopProc(ctx context.Context, addr Address, op string) error

	// FetchSession returns the latest session for an operation. The
	// snapshot is only meaningful when meta.OK() is true.
	FetchSession(ctx context.Context, addr Address, op string) (SessionSnapshot, PollMeta, error)

	// Connected reports whether the router connection is up.
	Connected() bool

	// AgentConnected reports whether the addressed agent has a live
	// registration on the router.
	AgentConnected(addr Address) bool
}

// Clock supplies the deck-local wall clock used for receipt times and
// staleness math. Tests substitute a fixed clock.
type Clock func() time.Time

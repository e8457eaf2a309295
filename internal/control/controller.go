// Package control dispatches lifecycle verbs to remote operations
// and enforces panel guard conditions. All verbs are asynchronous:
// a nil error means the router accepted the call, and completion is
// observed later through watcher polls.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/session"
)

// Kind distinguishes one-shot tasks from long-running processes.
type Kind string

const (
	KindTask    Kind = "task"
	KindProcess Kind = "process"
)

// Access levels for control enablement. Observers see everything and
// touch nothing.
const (
	AccessObserver = 1
	AccessOperator = 2
	AccessAdmin    = 3
)

var (
	ErrUnknownOperation = errors.New("operation not registered")
	ErrWrongKind        = errors.New("verb does not apply to this operation kind")
	ErrAccessDenied     = errors.New("access level too low for this operation")
	ErrBlocked          = errors.New("operation blocked while a governing process is active")
	ErrAlreadyRunning   = errors.New("operation already in flight and not re-entrant")
)

// Operation describes one dispatchable remote operation. Params is
// owned by the control/UI layer; watcher updates never touch it.
type Operation struct {
	Name string
	Kind Kind
	// Params is the persisted parameter set, mutated only after a
	// dispatch succeeds at the transport.
	Params ocs.Params
	// Reentrant tasks may be re-run while already in flight.
	Reentrant bool
	// Blockers names operations whose starting/running status
	// disables this one (channel configuration during acquisition,
	// for example).
	Blockers []string
	// MinAccess is the minimum access level allowed to dispatch.
	MinAccess int
}

// Controller guards and dispatches one agent's operations.
type Controller struct {
	client ocs.Client
	store  *session.Store
	addr   ocs.Address

	mu     sync.Mutex
	ops    map[string]*Operation
	access int
}

// Option configures a Controller.
type Option func(*Controller)

// WithAccess sets the initial access level (default observer).
func WithAccess(level int) Option {
	return func(c *Controller) { c.access = level }
}

// NewController builds a controller for the addressed agent.
func NewController(client ocs.Client, store *session.Store, addr ocs.Address, opts ...Option) *Controller {
	c := &Controller{
		client: client,
		store:  store,
		addr:   addr,
		ops:    make(map[string]*Operation),
		access: AccessObserver,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds an operation to the controller's table.
func (c *Controller) Register(op Operation) error {
	if op.Name == "" {
		return errors.New("operation name required")
	}
	if op.Kind != KindTask && op.Kind != KindProcess {
		return fmt.Errorf("operation %s: unknown kind %q", op.Name, op.Kind)
	}
	if op.MinAccess == 0 {
		op.MinAccess = AccessOperator
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops[op.Name] = &op
	return nil
}

// SetAccess changes the current access level.
func (c *Controller) SetAccess(level int) {
	c.mu.Lock()
	c.access = level
	c.mu.Unlock()
}

// Params returns a copy of an operation's persisted parameters.
func (c *Controller) Params(name string) (ocs.Params, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[name]
	if !ok {
		return nil, false
	}
	out := make(ocs.Params, len(op.Params))
	for k, v := range op.Params {
		out[k] = v
	}
	return out, true
}

// CanDispatch is the pure guard predicate presentation layers bind
// buttons to: current access level meets the operation's minimum and
// no blocker operation is starting or running.
func (c *Controller) CanDispatch(name string) bool {
	c.mu.Lock()
	op, ok := c.ops[name]
	access := c.access
	c.mu.Unlock()
	if !ok {
		return false
	}
	if access < op.MinAccess {
		return false
	}
	for _, blocker := range op.Blockers {
		if sess, ok := c.store.Get(blocker); ok && sess.Status.Active() {
			return false
		}
	}
	return true
}

// guard resolves the operation and applies the dispatch guards.
func (c *Controller) guard(name string, want Kind) (*Operation, error) {
	c.mu.Lock()
	op, ok := c.ops[name]
	access := c.access
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownOperation)
	}
	if op.Kind != want {
		return nil, fmt.Errorf("%s is a %s: %w", name, op.Kind, ErrWrongKind)
	}
	if access < op.MinAccess {
		return nil, fmt.Errorf("%s needs level %d: %w", name, op.MinAccess, ErrAccessDenied)
	}
	for _, blocker := range op.Blockers {
		if sess, ok := c.store.Get(blocker); ok && sess.Status.Active() {
			return nil, fmt.Errorf("%s blocked by %s: %w", name, blocker, ErrBlocked)
		}
	}
	return op, nil
}

// RunTask dispatches a one-shot task with the given parameter set.
// The operation's persisted Params are replaced only after the
// router accepts the call, so a transport failure never leaves a
// half-built parameter set visible to the UI model.
func (c *Controller) RunTask(ctx context.Context, name string, params ocs.Params) error {
	op, err := c.guard(name, KindTask)
	if err != nil {
		return c.report(name, "run", err)
	}

	if !op.Reentrant {
		if sess, ok := c.store.Get(name); ok && sess.Status.Active() {
			return c.report(name, "run", fmt.Errorf("%s is %s: %w", name, sess.Status, ErrAlreadyRunning))
		}
	}

	if err := c.client.RunTask(ctx, c.addr, name, params); err != nil {
		return c.report(name, "run", err)
	}
	c.commitParams(name, params)
	return nil
}

// AbortTask requests cancellation of a running task. Aborting an
// operation that already finished is a no-op, not an error.
func (c *Controller) AbortTask(ctx context.Context, name string) error {
	if _, err := c.guard(name, KindTask); err != nil {
		return c.report(name, "abort", err)
	}

	if sess, ok := c.store.Get(name); !ok || !sess.Status.Active() {
		return nil
	}

	if err := c.client.AbortTask(ctx, c.addr, name); err != nil {
		return c.report(name, "abort", err)
	}
	return nil
}

// StartProc starts a long-running process.
func (c *Controller) StartProc(ctx context.Context, name string, params ocs.Params) error {
	op, err := c.guard(name, KindProcess)
	if err != nil {
		return c.report(name, "start", err)
	}

	if !op.Reentrant {
		if sess, ok := c.store.Get(name); ok && sess.Status.Active() {
			return c.report(name, "start", fmt.Errorf("%s is %s: %w", name, sess.Status, ErrAlreadyRunning))
		}
	}

	if err := c.client.StartProc(ctx, c.addr, name, params); err != nil {
		return c.report(name, "start", err)
	}
	c.commitParams(name, params)
	return nil
}

// StopProc requests a process stop. Safe to issue at any time; the
// agent side treats stop as idempotent, and stopping an already
// stopped process is not an error here either.
func (c *Controller) StopProc(ctx context.Context, name string) error {
	if _, err := c.guard(name, KindProcess); err != nil {
		return c.report(name, "stop", err)
	}

	if err := c.client.StopProc(ctx, c.addr, name); err != nil {
		return c.report(name, "stop", err)
	}
	return nil
}

func (c *Controller) commitParams(name string, params ocs.Params) {
	if params == nil {
		return
	}
	c.mu.Lock()
	if op, ok := c.ops[name]; ok {
		op.Params = params
	}
	c.mu.Unlock()
}

// report wraps a failure as a user-visible dispatch error. Dispatch
// failures are contained at the operation boundary; nothing else is
// touched.
func (c *Controller) report(name, verb string, err error) error {
	return ocs.Dispatch(verb, c.addr, name, err)
}

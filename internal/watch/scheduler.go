// Package watch implements the periodic pollers that keep the
// session store fresh. Each watcher binds one operation and one
// wall-clock interval; the scheduler is the session store's only
// writer.
package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/events"
	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/session"
)

// Callback receives the result of one poll. meta describes the poll
// itself; sess is the freshly stored session on success, or the
// previously stored one when the poll failed. Callbacks are invoked
// fire-and-forget; a slow or panicking callback never delays the
// next poll.
type Callback func(op string, meta ocs.PollMeta, sess session.Session)

// RemoveFunc cancels a watcher. Calling it again is a no-op. It does
// not cancel an in-flight poll; a result landing after removal is
// applied by ordinary overwrite (or rejected by the sequence guard).
type RemoveFunc func()

// Scheduler runs watchers against one agent. Construct one per
// panel; dependencies are explicit, there is no package-level
// default client.
type Scheduler struct {
	client ocs.Client
	store  *session.Store
	addr   ocs.Address
	bus    *events.Bus // may be nil
	now    ocs.Clock

	mu       sync.Mutex
	watchers map[uint64]*watcher
	nextID   atomic.Uint64
	closed   bool
}

type watcher struct {
	op     string
	cb     Callback
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBus publishes session_update / poll_failed events on bus.
func WithBus(bus *events.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithClock substitutes the wall clock (tests).
func WithClock(now ocs.Clock) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler polling the given agent.
func NewScheduler(client ocs.Client, store *session.Store, addr ocs.Address, opts ...Option) *Scheduler {
	s := &Scheduler{
		client:   client,
		store:    store,
		addr:     addr,
		now:      time.Now,
		watchers: make(map[uint64]*watcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddWatcher registers a poller for op firing every interval. The
// first poll happens immediately. Multiple watchers on the same
// operation run independently; the scheduler does not deduplicate.
func (s *Scheduler) AddWatcher(op string, interval time.Duration, cb Callback) RemoveFunc {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{op: op, cb: cb, cancel: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return func() {}
	}
	id := s.nextID.Add(1)
	s.watchers[id] = w
	s.mu.Unlock()

	go s.run(ctx, op, interval)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// Stop cancels every watcher. The scheduler cannot be reused.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	ws := make([]*watcher, 0, len(s.watchers))
	for id, w := range s.watchers {
		ws = append(ws, w)
		delete(s.watchers, id)
	}
	s.mu.Unlock()

	for _, w := range ws {
		w.cancel()
	}
}

func (s *Scheduler) run(ctx context.Context, op string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.poll(ctx, op, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx, op, interval)
		}
	}
}

// poll fetches the operation's session, stores it, and fans the
// result out to every callback registered for that operation.
func (s *Scheduler) poll(ctx context.Context, op string, interval time.Duration) {
	callCtx, cancel := context.WithTimeout(ctx, interval)
	snap, meta, err := s.client.FetchSession(callCtx, s.addr, op)
	cancel()

	if ctx.Err() != nil {
		// Watcher removed while the poll was in flight; discard.
		return
	}

	var sess session.Session
	switch {
	case err != nil || !meta.OK():
		// Transport failure leaves the stored session untouched. With
		// nothing stored yet the callbacks still get a session in the
		// status alphabet, not the zero value.
		var ok bool
		sess, ok = s.store.Get(op)
		if !ok {
			sess = session.Session{Status: session.StatusUnknown}
		}
		if s.bus != nil {
			s.bus.Publish(events.NewPollFailedEvent(s.addr.String(), op, meta.Msg))
		}
	default:
		sess = session.FromSnapshot(snap, s.now())
		if !s.store.SetSeq(op, sess) {
			// Out-of-order delivery; keep the newer stored state.
			return
		}
		if s.bus != nil {
			s.bus.Publish(events.NewSessionUpdateEvent(s.addr.String(), op, string(sess.Status), sess.Seq))
		}
	}

	for _, cb := range s.callbacksFor(op) {
		go func(cb Callback) {
			defer func() { recover() }()
			cb(op, meta, sess)
		}(cb)
	}
}

// callbacksFor returns every callback registered for op, across all
// watchers targeting it.
func (s *Scheduler) callbacksFor(op string) []Callback {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cbs []Callback
	for _, w := range s.watchers {
		if w.op == op && w.cb != nil {
			cbs = append(cbs, w.cb)
		}
	}
	return cbs
}

package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/session"
)

// fakeClient serves canned snapshots and counts polls.
type fakeClient struct {
	mu    sync.Mutex
	snap  ocs.SessionSnapshot
	fail  bool
	polls atomic.Int32
}

func (f *fakeClient) setSnapshot(snap ocs.SessionSnapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
}

func (f *fakeClient) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeClient) FetchSession(ctx context.Context, addr ocs.Address, op string) (ocs.SessionSnapshot, ocs.PollMeta, error) {
	f.polls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ocs.SessionSnapshot{}, ocs.PollMeta{Method: "status", Stat: 1, Msg: "unreachable"}, errors.New("unreachable")
	}
	return f.snap, ocs.PollMeta{Method: "status"}, nil
}

func (f *fakeClient) RunTask(ctx context.Context, addr ocs.Address, op string, p ocs.Params) error {
	return nil
}
func (f *fakeClient) AbortTask(ctx context.Context, addr ocs.Address, op string) error { return nil }
func (f *fakeClient) StartProc(ctx context.Context, addr ocs.Address, op string, p ocs.Params) error {
	return nil
}
func (f *fakeClient) StopProc(ctx context.Context, addr ocs.Address, op string) error { return nil }
func (f *fakeClient) Connected() bool                      { return true }
func (f *fakeClient) AgentConnected(addr ocs.Address) bool { return true }

var testAddr = ocs.MustAddress("observatory.thermo-1")

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherUpdatesStore(t *testing.T) {
	client := &fakeClient{}
	client.setSnapshot(ocs.SessionSnapshot{Status: "running", Data: map[string]any{"timestamp": 100.0}})
	store := session.NewStore()
	s := NewScheduler(client, store, testAddr)
	defer s.Stop()

	var calls atomic.Int32
	remove := s.AddWatcher("acq", 5*time.Millisecond, func(op string, meta ocs.PollMeta, sess session.Session) {
		if op != "acq" {
			t.Errorf("callback op = %q", op)
		}
		if !meta.OK() {
			t.Errorf("unexpected poll failure: %+v", meta)
		}
		calls.Add(1)
	})
	defer remove()

	waitFor(t, func() bool {
		sess, ok := store.Get("acq")
		return ok && sess.Status == session.StatusRunning && calls.Load() > 0
	})

	sess, _ := store.Get("acq")
	if sess.DataTimestamp != 100.0 {
		t.Errorf("DataTimestamp = %v, want 100", sess.DataTimestamp)
	}
	if sess.LastUpdate.IsZero() {
		t.Error("LastUpdate not stamped")
	}
}

func TestPollFailureLeavesStoreUntouched(t *testing.T) {
	client := &fakeClient{}
	client.setSnapshot(ocs.SessionSnapshot{Status: "running"})
	store := session.NewStore()
	s := NewScheduler(client, store, testAddr)
	defer s.Stop()

	var failures atomic.Int32
	remove := s.AddWatcher("acq", 5*time.Millisecond, func(op string, meta ocs.PollMeta, sess session.Session) {
		if !meta.OK() {
			failures.Add(1)
			if sess.Status != session.StatusRunning {
				t.Errorf("failed poll should carry last stored session, got %v", sess.Status)
			}
		}
	})
	defer remove()

	waitFor(t, func() bool {
		sess, ok := store.Get("acq")
		return ok && sess.Status == session.StatusRunning
	})

	client.setFail(true)
	waitFor(t, func() bool { return failures.Load() > 0 })

	sess, _ := store.Get("acq")
	if sess.Status != session.StatusRunning {
		t.Errorf("store mutated by failed poll: %v", sess.Status)
	}
}

func TestFirstPollFailureReportsUnknown(t *testing.T) {
	client := &fakeClient{}
	client.setFail(true)
	store := session.NewStore()
	s := NewScheduler(client, store, testAddr)
	defer s.Stop()

	var failures atomic.Int32
	remove := s.AddWatcher("acq", 5*time.Millisecond, func(op string, meta ocs.PollMeta, sess session.Session) {
		if meta.OK() {
			return
		}
		if sess.Status != session.StatusUnknown {
			t.Errorf("failed poll with empty store carried status %q, want %q", sess.Status, session.StatusUnknown)
		}
		failures.Add(1)
	})
	defer remove()

	waitFor(t, func() bool { return failures.Load() > 0 })

	if _, ok := store.Get("acq"); ok {
		t.Error("failed poll must not seed the store")
	}
}

func TestRemoveWatcherIdempotent(t *testing.T) {
	client := &fakeClient{}
	client.setSnapshot(ocs.SessionSnapshot{Status: "running"})
	store := session.NewStore()
	s := NewScheduler(client, store, testAddr)
	defer s.Stop()

	remove := s.AddWatcher("acq", 5*time.Millisecond, nil)
	waitFor(t, func() bool { return client.polls.Load() > 0 })

	remove()
	remove() // second removal is a no-op

	settled := client.polls.Load()
	time.Sleep(30 * time.Millisecond)
	// Allow one in-flight tick, no sustained polling.
	if got := client.polls.Load(); got > settled+1 {
		t.Errorf("polls continued after removal: %d -> %d", settled, got)
	}
}

func TestMultipleWatchersSameOp(t *testing.T) {
	client := &fakeClient{}
	client.setSnapshot(ocs.SessionSnapshot{Status: "running"})
	store := session.NewStore()
	s := NewScheduler(client, store, testAddr)
	defer s.Stop()

	var a, b atomic.Int32
	defer s.AddWatcher("acq", 5*time.Millisecond, func(string, ocs.PollMeta, session.Session) { a.Add(1) })()
	defer s.AddWatcher("acq", 50*time.Millisecond, func(string, ocs.PollMeta, session.Session) { b.Add(1) })()

	// Every poll fans out to every callback registered for the op, so
	// both counters advance even though the intervals differ.
	waitFor(t, func() bool { return a.Load() >= 2 && b.Load() >= 2 })
}

func TestPanickingCallbackDoesNotStopPolling(t *testing.T) {
	client := &fakeClient{}
	client.setSnapshot(ocs.SessionSnapshot{Status: "running"})
	store := session.NewStore()
	s := NewScheduler(client, store, testAddr)
	defer s.Stop()

	remove := s.AddWatcher("acq", 5*time.Millisecond, func(string, ocs.PollMeta, session.Session) {
		panic("callback bug")
	})
	defer remove()

	waitFor(t, func() bool { return client.polls.Load() >= 3 })
}

func TestStopCancelsAllWatchers(t *testing.T) {
	client := &fakeClient{}
	client.setSnapshot(ocs.SessionSnapshot{Status: "running"})
	store := session.NewStore()
	s := NewScheduler(client, store, testAddr)

	s.AddWatcher("acq", 5*time.Millisecond, nil)
	s.AddWatcher("temps", 5*time.Millisecond, nil)
	waitFor(t, func() bool { return client.polls.Load() >= 2 })

	s.Stop()
	settled := client.polls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := client.polls.Load(); got > settled+2 {
		t.Errorf("polls continued after Stop: %d -> %d", settled, got)
	}

	// AddWatcher after Stop is inert.
	remove := s.AddWatcher("acq", 5*time.Millisecond, nil)
	remove()
}

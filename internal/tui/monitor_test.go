package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ocs-tools/ocsdeck/internal/events"
	"github.com/ocs-tools/ocsdeck/internal/indicator"
	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/session"
)

// connClient fakes only the connection state; the monitor reads
// session data from the store, not the client.
type connClient struct {
	router bool
	agent  bool
}

func (c connClient) RunTask(context.Context, ocs.Address, string, ocs.Params) error { return nil }
func (c connClient) AbortTask(context.Context, ocs.Address, string) error           { return nil }
func (c connClient) StartProc(context.Context, ocs.Address, string, ocs.Params) error {
	return nil
}
func (c connClient) StopProc(context.Context, ocs.Address, string) error { return nil }
func (c connClient) FetchSession(context.Context, ocs.Address, string) (ocs.SessionSnapshot, ocs.PollMeta, error) {
	return ocs.SessionSnapshot{}, ocs.PollMeta{}, nil
}
func (c connClient) Connected() bool                 { return c.router }
func (c connClient) AgentConnected(ocs.Address) bool { return c.agent }

func testPanel(t *testing.T, now time.Time) Panel {
	t.Helper()
	store := session.NewStore()
	store.Set("acq", session.Session{
		Status:        session.StatusRunning,
		Message:       "acquiring",
		DataTimestamp: float64(now.Unix()) - 2,
		LastUpdate:    now,
	})

	signals := []indicator.Signal{
		{Name: "thermo_feed", Op: "acq", Threshold: 5 * time.Second},
	}
	return Panel{
		Agent:  "thermo-1",
		Addr:   ocs.MustAddress("observatory.thermo-1"),
		Store:  store,
		Engine: indicator.NewEngine(signals, store, func() time.Time { return now }),
	}
}

func TestViewShowsPanel(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Unix(1700000000, 0)

	m := New(connClient{router: true, agent: true}, []Panel{testPanel(t, now)}, nil)
	m.now = now
	view := m.View()

	for _, want := range []string{"thermo-1", "thermo_feed", "router", "agent", "acq", "running", "GOOD"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewRouterDown(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Unix(1700000000, 0)

	m := New(connClient{router: false}, []Panel{testPanel(t, now)}, nil)
	m.now = now
	view := m.View()

	if !strings.Contains(view, "BAD") {
		t.Errorf("router down: worst badge should be BAD:\n%s", view)
	}
	if !strings.Contains(view, string(indicator.NotApplic)) {
		t.Errorf("router down: signals should show notapplic:\n%s", view)
	}
}

func TestUpdateQuitAndTick(t *testing.T) {
	m := New(connClient{}, nil, nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key should produce a command")
	}
	if !next.(Model).quitting {
		t.Error("quit key should set quitting")
	}

	at := time.Unix(42, 0)
	next, cmd = m.Update(tickMsg(at))
	if !next.(Model).now.Equal(at) {
		t.Error("tick should advance the model clock")
	}
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}

	next, _ = m.Update(tea.WindowSizeMsg{Width: 24, Height: 10})
	if next.(Model).width != 24 {
		t.Error("window size not recorded")
	}
}

func TestViewFooterShowsLastEvent(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	bus := events.NewBus(8)
	m := New(connClient{}, nil, bus)

	bus.PublishSync(events.NewSessionUpdateEvent("observatory.thermo-1", "acq", "running", 3))

	view := m.View()
	if !strings.Contains(view, "acq is running") {
		t.Errorf("footer missing latest event:\n%s", view)
	}
}

func TestBusEventRepaints(t *testing.T) {
	bus := events.NewBus(8)
	m := New(connClient{}, nil, bus)
	if m.events == nil {
		t.Fatal("bus subscription not wired")
	}

	before := m.now
	time.Sleep(time.Millisecond)
	bus.PublishSync(events.NewSessionUpdateEvent("observatory.thermo-1", "acq", "running", 1))

	msg := waitEvent(m.events)()
	next, cmd := m.Update(msg)
	if !next.(Model).now.After(before) {
		t.Error("watcher event should advance the model clock")
	}
	if cmd == nil {
		t.Error("watcher event should re-arm the bus wait")
	}
}

func TestClipRespectsWidth(t *testing.T) {
	m := New(connClient{}, nil, nil)
	m.width = 10
	got := m.clip("a line much longer than ten cells")
	if len([]rune(got)) > 10 {
		t.Errorf("clip left %d runes: %q", len([]rune(got)), got)
	}
}

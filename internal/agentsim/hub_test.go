package agentsim

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/ocs"
)

const thermoSchema = `
name: thermo-1
class: ThermometryAgent
tasks:
  - name: set_channel
    duration: 1.0
    params:
      channel: 1
processes:
  - name: acq
    period: 0.5
    fields:
      connected: true
      mode: Acq
`

// stepClock is a manually advanced clock shared with the hub.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Unix(1000, 0)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestHub(t *testing.T) (*Hub, *stepClock) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "thermo.yaml"), []byte(thermoSchema), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-agent YAML must be skipped by discovery.
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("not: an agent"), 0o644); err != nil {
		t.Fatal(err)
	}

	schemas, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(schemas) != 1 {
		t.Fatalf("schemas = %d, want 1 (config.yaml should be excluded)", len(schemas))
	}

	clock := newStepClock()
	return NewHub("observatory", schemas, WithClock(clock.Now)), clock
}

var thermoAddr = ocs.MustAddress("observatory.thermo-1")

func fetchStatus(t *testing.T, h *Hub, op string) string {
	t.Helper()
	snap, meta, err := h.FetchSession(context.Background(), thermoAddr, op)
	if err != nil || !meta.OK() {
		t.Fatalf("FetchSession(%s): %v %+v", op, err, meta)
	}
	return snap.Status
}

func TestSchemaValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	os.WriteFile(path, []byte("class: NoName"), 0o644)
	if _, err := LoadSchema(path); err == nil {
		t.Error("schema without name accepted")
	}

	os.WriteFile(path, []byte("name: x\nprocesses:\n  - name: acq\n"), 0o644)
	if _, err := LoadSchema(path); err == nil {
		t.Error("process without period accepted")
	}
}

func TestProcessLifecycle(t *testing.T) {
	h, clock := newTestHub(t)
	ctx := context.Background()

	if got := fetchStatus(t, h, "acq"); got != "unknown" {
		t.Errorf("before start: %q, want unknown", got)
	}

	if err := h.StartProc(ctx, thermoAddr, "acq", nil); err != nil {
		t.Fatalf("StartProc: %v", err)
	}
	if got := fetchStatus(t, h, "acq"); got != "starting" {
		t.Errorf("right after start: %q, want starting", got)
	}

	clock.Advance(200 * time.Millisecond)
	if got := fetchStatus(t, h, "acq"); got != "running" {
		t.Errorf("after startup lag: %q, want running", got)
	}

	if err := h.StopProc(ctx, thermoAddr, "acq"); err != nil {
		t.Fatalf("StopProc: %v", err)
	}
	if got := fetchStatus(t, h, "acq"); got != "done" {
		t.Errorf("after stop: %q, want done", got)
	}

	// Idempotent stop: no error, no state change.
	if err := h.StopProc(ctx, thermoAddr, "acq"); err != nil {
		t.Errorf("second StopProc: %v", err)
	}
	if got := fetchStatus(t, h, "acq"); got != "done" {
		t.Errorf("after second stop: %q, want done", got)
	}

	// Processes cycle back through starting on restart.
	if err := h.StartProc(ctx, thermoAddr, "acq", nil); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := fetchStatus(t, h, "acq"); got != "starting" {
		t.Errorf("after restart: %q, want starting", got)
	}
}

func TestTaskLifecycle(t *testing.T) {
	h, clock := newTestHub(t)
	ctx := context.Background()

	if err := h.RunTask(ctx, thermoAddr, "set_channel", ocs.Params{"channel": 3}); err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	clock.Advance(500 * time.Millisecond)
	if got := fetchStatus(t, h, "set_channel"); got != "running" {
		t.Errorf("mid-task: %q, want running", got)
	}

	clock.Advance(time.Second)
	snap, _, err := h.FetchSession(ctx, thermoAddr, "set_channel")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != "done" {
		t.Errorf("after duration: %q, want done", snap.Status)
	}
	if snap.Success == nil || !*snap.Success {
		t.Errorf("Success = %v, want true", snap.Success)
	}
	if snap.Data["channel"] != 3 {
		t.Errorf("dispatch params not reflected in payload: %v", snap.Data)
	}
}

func TestTaskAbort(t *testing.T) {
	h, clock := newTestHub(t)
	ctx := context.Background()

	h.RunTask(ctx, thermoAddr, "set_channel", nil)
	clock.Advance(500 * time.Millisecond)
	if err := h.AbortTask(ctx, thermoAddr, "set_channel"); err != nil {
		t.Fatalf("AbortTask: %v", err)
	}

	snap, _, _ := h.FetchSession(ctx, thermoAddr, "set_channel")
	if snap.Status != "done" {
		t.Errorf("after abort: %q, want done", snap.Status)
	}
	if snap.Success == nil || *snap.Success {
		t.Errorf("aborted task Success = %v, want false", snap.Success)
	}
}

func TestFeedTimestampQuantized(t *testing.T) {
	h, clock := newTestHub(t)
	ctx := context.Background()

	h.StartProc(ctx, thermoAddr, "acq", nil)
	start := clock.Now()
	clock.Advance(1300 * time.Millisecond) // 2.6 periods of 0.5s

	snap, _, _ := h.FetchSession(ctx, thermoAddr, "acq")
	want := float64(start.Add(1000*time.Millisecond).UnixNano()) / 1e9
	got, _ := snap.Data["timestamp"].(float64)
	if got != want {
		t.Errorf("feed timestamp = %v, want last period boundary %v", got, want)
	}
	if snap.Data["connected"] != true || snap.Data["mode"] != "Acq" {
		t.Errorf("schema fields missing from feed: %v", snap.Data)
	}
}

func TestSeqIncreasesPerPoll(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	a, _, _ := h.FetchSession(ctx, thermoAddr, "acq")
	b, _, _ := h.FetchSession(ctx, thermoAddr, "acq")
	if b.Seq <= a.Seq {
		t.Errorf("seq not increasing: %d then %d", a.Seq, b.Seq)
	}
}

func TestConnectionToggles(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	if !h.Connected() || !h.AgentConnected(thermoAddr) {
		t.Fatal("hub should start connected")
	}

	h.SetAgentOffline("thermo-1", true)
	if h.AgentConnected(thermoAddr) {
		t.Error("offline agent still registered")
	}
	if _, meta, err := h.FetchSession(ctx, thermoAddr, "acq"); err == nil || meta.OK() {
		t.Error("poll of offline agent should fail at transport level")
	}

	h.SetAgentOffline("thermo-1", false)
	h.SetRouterUp(false)
	if h.Connected() {
		t.Error("router toggle ignored")
	}
	if err := h.StartProc(ctx, thermoAddr, "acq", nil); err == nil {
		t.Error("dispatch with router down should fail")
	}
}

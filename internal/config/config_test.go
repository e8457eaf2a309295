package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/control"
	"github.com/ocs-tools/ocsdeck/internal/session"
)

const sampleConfig = `
[crossbar]
url = "ws://localhost:8001/ws"
realm = "deck_realm"
address_root = "observatory"

[access]
level = 2

[[panel]]
agent = "thermo-1"
interval = "5s"

  [[panel.signal]]
  name = "temps_fresh"
  op = "acq"
  threshold = "500ms"

  [[panel.signal]]
  name = "pdu_link"
  op = "acq"
  field = "connected"
  threshold = "3s"
  predicate = "true"

  [[panel.signal]]
  name = "sensor_stopped"
  op = "acq"
  field = "mode"
  threshold = "5s"
  predicate = "equals"
  equals = "Stop"
  invert = true

  [[panel.signal]]
  name = "inventory"
  op = "fetch_inventory"
  field = "count"
  threshold = "120s"
  predicate = "deviates"
  baseline = 64.0
  tolerance = 1.0

  [[panel.op]]
  name = "acq"
  kind = "process"

  [[panel.op]]
  name = "set_channel"
  kind = "task"
  blockers = ["acq"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Crossbar.AddressRoot != "observatory" {
		t.Errorf("AddressRoot = %q", cfg.Crossbar.AddressRoot)
	}
	if cfg.Access.Level != 2 {
		t.Errorf("Access.Level = %d", cfg.Access.Level)
	}

	panel, ok := cfg.Panel("thermo-1")
	if !ok {
		t.Fatal("panel thermo-1 missing")
	}
	if panel.Interval.Std() != 5*time.Second {
		t.Errorf("Interval = %v", panel.Interval.Std())
	}
	if got := panel.Signals[0].Threshold.Std(); got != 500*time.Millisecond {
		t.Errorf("fast feed threshold = %v", got)
	}
	if got := panel.Signals[3].Threshold.Std(); got != 120*time.Second {
		t.Errorf("slow feed threshold = %v", got)
	}
}

func TestSignalTablePredicates(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	panel, _ := cfg.Panel("thermo-1")
	table := panel.SignalTable()
	if len(table) != 4 {
		t.Fatalf("table size = %d", len(table))
	}

	// Staleness-only row has no predicate.
	if table[0].Predicate != nil {
		t.Error("fresh signal should have nil predicate")
	}

	linked := session.Session{Data: map[string]any{"connected": true}}
	if !table[1].Predicate(linked) {
		t.Error("true predicate on connected payload")
	}

	stopped := session.Session{Data: map[string]any{"mode": "Stop"}}
	if !table[2].Predicate(stopped) {
		t.Error("equals predicate should match Stop")
	}
	if !table[2].Invert {
		t.Error("invert flag lost in conversion")
	}

	drifted := session.Session{Data: map[string]any{"count": 60.0}}
	if !table[3].Predicate(drifted) {
		t.Error("deviates predicate should fire at 60 vs baseline 64")
	}
}

func TestOperations(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	panel, _ := cfg.Panel("thermo-1")
	ops := panel.Operations()
	if len(ops) != 2 {
		t.Fatalf("ops = %d", len(ops))
	}
	if ops[0].Kind != control.KindProcess {
		t.Errorf("acq kind = %v", ops[0].Kind)
	}
	if len(ops[1].Blockers) != 1 || ops[1].Blockers[0] != "acq" {
		t.Errorf("set_channel blockers = %v", ops[1].Blockers)
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing url", `
[crossbar]
realm = "r"
address_root = "a"
`},
		{"missing realm", `
[crossbar]
url = "ws://x"
address_root = "a"
`},
		{"panel without interval", `
[crossbar]
url = "ws://x"
realm = "r"
address_root = "a"

[[panel]]
agent = "thermo-1"
`},
		{"signal without threshold", `
[crossbar]
url = "ws://x"
realm = "r"
address_root = "a"

[[panel]]
agent = "thermo-1"
interval = "5s"

  [[panel.signal]]
  name = "x"
  op = "acq"
`},
		{"unknown predicate", `
[crossbar]
url = "ws://x"
realm = "r"
address_root = "a"

[[panel]]
agent = "thermo-1"
interval = "5s"

  [[panel.signal]]
  name = "x"
  op = "acq"
  threshold = "1s"
  predicate = "sometimes"
`},
		{"bad op kind", `
[crossbar]
url = "ws://x"
realm = "r"
address_root = "a"

[[panel]]
agent = "thermo-1"
interval = "5s"

  [[panel.op]]
  name = "acq"
  kind = "daemon"
`},
	}

	for _, tt := range tests {
		if _, err := Load(writeConfig(t, tt.content)); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestWatchReload(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	got := make(chan *Config, 1)
	stop, err := Watch(path, func(cfg *Config) {
		select {
		case got <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	updated := sampleConfig + "\n[[panel]]\nagent = \"pdu-1\"\ninterval = \"2s\"\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if _, ok := cfg.Panel("pdu-1"); !ok {
			t.Error("reloaded config missing new panel")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

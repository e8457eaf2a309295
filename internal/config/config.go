// Package config loads the deck configuration: router connection,
// access level, and per-panel signal and operation tables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ocs-tools/ocsdeck/internal/control"
	"github.com/ocs-tools/ocsdeck/internal/indicator"
	"github.com/ocs-tools/ocsdeck/internal/util"
)

// Duration is a TOML-friendly duration accepting human strings
// ("500ms", "5s", "2m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := util.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level deck configuration.
type Config struct {
	Crossbar CrossbarConfig `toml:"crossbar"`
	Access   AccessConfig   `toml:"access"`
	Panels   []PanelConfig  `toml:"panel"`
}

// CrossbarConfig points the deck at the pub/sub router.
type CrossbarConfig struct {
	URL         string `toml:"url"`
	Realm       string `toml:"realm"`
	AddressRoot string `toml:"address_root"`
}

// AccessConfig sets the operator's control level.
type AccessConfig struct {
	Level int `toml:"level"`
}

// PanelConfig describes one agent panel: which agent it watches, how
// often, and its declarative signal and operation tables.
type PanelConfig struct {
	Agent    string         `toml:"agent"`
	Interval Duration       `toml:"interval"`
	Signals  []SignalConfig `toml:"signal"`
	Ops      []OpConfig     `toml:"op"`
}

// SignalConfig is one declarative signal table row.
type SignalConfig struct {
	Name      string   `toml:"name"`
	Op        string   `toml:"op"`
	Field     string   `toml:"field"`
	Threshold Duration `toml:"threshold"`
	// Predicate selects the payload test: "fresh" (staleness only),
	// "true" (boolean field), "equals", or "deviates".
	Predicate string   `toml:"predicate"`
	Invert    bool     `toml:"invert"`
	Equals    string   `toml:"equals"`
	EqualsNum *float64 `toml:"equals_num"`
	Baseline  float64  `toml:"baseline"`
	Tolerance float64  `toml:"tolerance"`
}

// OpConfig registers one operation with the lifecycle controller.
type OpConfig struct {
	Name      string   `toml:"name"`
	Kind      string   `toml:"kind"`
	Reentrant bool     `toml:"reentrant"`
	Blockers  []string `toml:"blockers"`
	MinAccess int      `toml:"min_access"`
}

// DefaultPath returns the standard config location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ocsdeck", "config.toml")
	}
	return filepath.Join(".", "ocsdeck.toml")
}

// Load reads and validates a deck config file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the fields nothing can run without, failing
// earlier and clearer than the router connection would.
func (c *Config) Validate() error {
	if c.Crossbar.URL == "" {
		return fmt.Errorf("missing crossbar.url")
	}
	if c.Crossbar.Realm == "" {
		return fmt.Errorf("missing crossbar.realm")
	}
	if c.Crossbar.AddressRoot == "" {
		return fmt.Errorf("missing crossbar.address_root")
	}
	for i, p := range c.Panels {
		if p.Agent == "" {
			return fmt.Errorf("panel %d: missing agent", i)
		}
		if p.Interval <= 0 {
			return fmt.Errorf("panel %s: missing interval", p.Agent)
		}
		for _, sig := range p.Signals {
			if sig.Name == "" || sig.Op == "" {
				return fmt.Errorf("panel %s: signal rows need name and op", p.Agent)
			}
			if sig.Threshold <= 0 {
				return fmt.Errorf("panel %s: signal %s needs a threshold", p.Agent, sig.Name)
			}
			switch sig.Predicate {
			case "", "fresh", "true", "equals", "deviates":
			default:
				return fmt.Errorf("panel %s: signal %s: unknown predicate %q", p.Agent, sig.Name, sig.Predicate)
			}
		}
		for _, op := range p.Ops {
			if op.Kind != string(control.KindTask) && op.Kind != string(control.KindProcess) {
				return fmt.Errorf("panel %s: op %s: kind must be task or process", p.Agent, op.Name)
			}
		}
	}
	return nil
}

// Panel returns the panel config for an agent instance.
func (c *Config) Panel(agent string) (PanelConfig, bool) {
	for _, p := range c.Panels {
		if p.Agent == agent {
			return p, true
		}
	}
	return PanelConfig{}, false
}

// SignalTable converts a panel's signal rows into the indicator
// engine's table.
func (p PanelConfig) SignalTable() []indicator.Signal {
	out := make([]indicator.Signal, 0, len(p.Signals))
	for _, row := range p.Signals {
		out = append(out, indicator.Signal{
			Name:      row.Name,
			Op:        row.Op,
			Threshold: row.Threshold.Std(),
			Predicate: row.predicate(),
			Invert:    row.Invert,
		})
	}
	return out
}

func (row SignalConfig) predicate() indicator.Predicate {
	switch row.Predicate {
	case "true":
		return indicator.FieldTrue(row.Field)
	case "equals":
		if row.EqualsNum != nil {
			return indicator.FieldEquals(row.Field, *row.EqualsNum)
		}
		return indicator.FieldEquals(row.Field, row.Equals)
	case "deviates":
		return indicator.Deviates(row.Field, row.Baseline, row.Tolerance)
	default: // "", "fresh"
		return nil
	}
}

// Operations converts a panel's op rows into controller
// registrations.
func (p PanelConfig) Operations() []control.Operation {
	out := make([]control.Operation, 0, len(p.Ops))
	for _, row := range p.Ops {
		out = append(out, control.Operation{
			Name:      row.Name,
			Kind:      control.Kind(row.Kind),
			Reentrant: row.Reentrant,
			Blockers:  row.Blockers,
			MinAccess: row.MinAccess,
		})
	}
	return out
}

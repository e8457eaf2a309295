package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ocs-tools/ocsdeck/internal/agentsim"
	"github.com/ocs-tools/ocsdeck/internal/config"
	"github.com/ocs-tools/ocsdeck/internal/control"
	"github.com/ocs-tools/ocsdeck/internal/format"
	"github.com/ocs-tools/ocsdeck/internal/indicator"
	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/output"
	"github.com/ocs-tools/ocsdeck/internal/session"
)

// connect builds the agent client: the router websocket adapter, or
// an in-process simulated fleet when --sim is set.
func connect(ctx context.Context) (ocs.Client, func(), error) {
	if simDir != "" {
		schemas, err := agentsim.LoadDir(simDir)
		if err != nil {
			return nil, nil, err
		}
		hub := agentsim.NewHub(cfg.Crossbar.AddressRoot, schemas)
		return hub, func() {}, nil
	}

	ws, err := ocs.DialWS(ctx, ocs.WSConfig{
		URL:   cfg.Crossbar.URL,
		Realm: cfg.Crossbar.Realm,
	})
	if err != nil {
		return nil, nil, output.RouterUnreachableError(cfg.Crossbar.URL, err)
	}
	return ws, func() { ws.Close() }, nil
}

// deck is one agent panel's full wiring: its session store, the
// indicator engine over it, and the lifecycle controller.
type deck struct {
	panel      config.PanelConfig
	addr       ocs.Address
	store      *session.Store
	engine     *indicator.Engine
	controller *control.Controller
}

// buildDeck wires one panel against the given client.
func buildDeck(client ocs.Client, panel config.PanelConfig) (*deck, error) {
	addr := ocs.Address{Root: cfg.Crossbar.AddressRoot, Instance: panel.Agent}
	store := session.NewStore()

	ctrl := control.NewController(client, store, addr, control.WithAccess(cfg.Access.Level))
	for _, op := range panel.Operations() {
		if err := ctrl.Register(op); err != nil {
			return nil, fmt.Errorf("panel %s: %w", panel.Agent, err)
		}
	}

	return &deck{
		panel:      panel,
		addr:       addr,
		store:      store,
		engine:     indicator.NewEngine(panel.SignalTable(), store, nil),
		controller: ctrl,
	}, nil
}

// watchedOps returns the panel's distinct operation names: every op
// a signal reads plus every op registered for control.
func (d *deck) watchedOps() []string {
	seen := map[string]bool{}
	for _, sig := range d.panel.Signals {
		seen[sig.Op] = true
	}
	for _, op := range d.panel.Ops {
		seen[op.Name] = true
	}
	ops := make([]string, 0, len(seen))
	for op := range seen {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// pollOnce refreshes every watched operation's session. Failed polls
// leave the store untouched; the indicator engine then reports on
// whatever state is known.
func (d *deck) pollOnce(ctx context.Context, client ocs.Client) {
	now := time.Now()
	for _, op := range d.watchedOps() {
		snap, meta, err := client.FetchSession(ctx, d.addr, op)
		if err != nil || !meta.OK() {
			continue
		}
		d.store.SetSeq(op, session.FromSnapshot(snap, now))
	}
}

// snapshot evaluates the deck into the status response shape.
func (d *deck) snapshot(client ocs.Client, now time.Time) output.PanelResponse {
	report := d.engine.Evaluate(indicator.ConnState{
		Router: client.Connected(),
		Agent:  client.AgentConnected(d.addr),
	})

	resp := output.PanelResponse{
		Agent:     d.panel.Agent,
		Address:   d.addr.String(),
		Router:    string(report.Router),
		Connected: string(report.Agent),
		Worst:     string(report.Worst()),
	}

	for _, sig := range d.engine.Signals() {
		ind := output.IndicatorResponse{
			Name:  sig.Name,
			Op:    sig.Op,
			Value: string(report.Signals[sig.Name]),
		}
		if sess, ok := d.store.Get(sig.Op); ok && sess.DataTimestamp > 0 {
			ind.Age = format.Age(float64(now.UnixNano())/1e9 - sess.DataTimestamp)
		}
		resp.Indicators = append(resp.Indicators, ind)
	}

	sessions := make(map[string]session.Session)
	for _, op := range d.store.Ops() {
		if sess, ok := d.store.Get(op); ok {
			sessions[op] = sess
		}
	}
	resp.Activities = indicator.JoinActivities(sessions)

	ops := make([]string, 0, len(sessions))
	for op := range sessions {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		sess := sessions[op]
		sr := output.OpSessionResponse{
			Op:      op,
			Status:  string(sess.Status),
			Message: sess.Message,
			Success: sess.Success,
		}
		if sess.DataTimestamp > 0 {
			sr.DataAge = format.Age(float64(now.UnixNano())/1e9 - sess.DataTimestamp)
		}
		resp.Sessions = append(resp.Sessions, sr)
	}

	return resp
}

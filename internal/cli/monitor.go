package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ocs-tools/ocsdeck/internal/events"
	"github.com/ocs-tools/ocsdeck/internal/indicator"
	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/output"
	"github.com/ocs-tools/ocsdeck/internal/tui"
	"github.com/ocs-tools/ocsdeck/internal/watch"
)

func newMonitorCmd() *cobra.Command {
	var robot bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live panel monitor (TUI)",
		Long: `Opens the full-screen monitor: every configured panel with its
connection lights, signal indicators, and operation sessions,
refreshed continuously by per-operation watchers.

With --robot the watchers run headless and every deck event
(session_update, poll_failed, indicator_change) streams to stdout
as JSON lines until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if robot {
				return runRobotMonitor(cmd.Context())
			}
			return runLiveMonitor(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&robot, "robot", false, "stream deck events as JSON lines instead of the TUI")
	return cmd
}

// startWatchers wires every configured panel's deck and starts its
// watcher schedulers on the bus. The returned stop function halts
// all polling.
func startWatchers(client ocs.Client, bus *events.Bus) ([]*deck, func(), error) {
	var decks []*deck
	var schedulers []*watch.Scheduler
	stop := func() {
		for _, s := range schedulers {
			s.Stop()
		}
	}

	for _, panel := range cfg.Panels {
		d, err := buildDeck(client, panel)
		if err != nil {
			stop()
			return nil, nil, err
		}

		sched := watch.NewScheduler(client, d.store, d.addr, watch.WithBus(bus))
		for _, op := range d.watchedOps() {
			// The watcher's job here is keeping the store warm and the
			// bus fed; consumers read the store on their own schedule.
			sched.AddWatcher(op, panel.Interval.Std(), nil)
		}
		schedulers = append(schedulers, sched)
		decks = append(decks, d)
	}
	return decks, stop, nil
}

func runLiveMonitor(ctx context.Context) error {
	if !IsInteractive(os.Stdout) {
		return fail(output.NewCLIError("monitor needs a terminal").
			WithHint("Use 'ocsdeck monitor --robot' for a JSON event stream, or 'ocsdeck status --json' for one-shot snapshots"))
	}

	client, cleanup, err := connect(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	bus := events.NewBus(256)
	decks, stop, err := startWatchers(client, bus)
	if err != nil {
		return fail(err)
	}
	defer stop()

	panels := make([]tui.Panel, 0, len(decks))
	for _, d := range decks {
		panels = append(panels, tui.Panel{
			Agent:  d.panel.Agent,
			Addr:   d.addr,
			Store:  d.store,
			Engine: d.engine,
		})
	}

	return tui.Run(client, panels, bus)
}

// runRobotMonitor streams the bus to stdout as JSON lines. Each poll
// outcome re-derives the indicators and publishes indicator_change
// for every light that moved, the first evaluation included.
func runRobotMonitor(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, cleanup, err := connect(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	bus := events.NewBus(256)
	decks, stop, err := startWatchers(client, bus)
	if err != nil {
		return fail(err)
	}
	defer stop()

	var mu sync.Mutex
	trackers := make(map[*deck]*indicator.Tracker, len(decks))
	for _, d := range decks {
		trackers[d] = indicator.NewTracker()
	}
	reeval := func(events.Event) {
		mu.Lock()
		defer mu.Unlock()
		for _, d := range decks {
			report := d.engine.Evaluate(indicator.ConnState{
				Router: client.Connected(),
				Agent:  client.AgentConnected(d.addr),
			})
			for _, c := range trackers[d].Diff(report) {
				bus.Publish(events.NewIndicatorChangeEvent(d.addr.String(), c.Signal, string(c.From), string(c.To)))
			}
		}
	}

	defer bus.StreamJSON(os.Stdout)()
	defer bus.Subscribe("session_update", reeval)()
	defer bus.Subscribe("poll_failed", reeval)()

	<-ctx.Done()
	return nil
}

// Package tui renders the live agent monitor: one panel per agent,
// each with its connection lights, signal indicators, and operation
// sessions, refreshed every second from the session stores the
// watcher schedulers keep warm.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/ocs-tools/ocsdeck/internal/events"
	"github.com/ocs-tools/ocsdeck/internal/format"
	"github.com/ocs-tools/ocsdeck/internal/indicator"
	"github.com/ocs-tools/ocsdeck/internal/ocs"
	"github.com/ocs-tools/ocsdeck/internal/session"
	"github.com/ocs-tools/ocsdeck/internal/tui/theme"
)

// Panel is one agent's wiring: its store is kept fresh by a watcher
// scheduler owned by the caller, the engine derives the lights.
type Panel struct {
	Agent  string
	Addr   ocs.Address
	Store  *session.Store
	Engine *indicator.Engine
}

// tickMsg drives the once-a-second re-evaluation.
type tickMsg time.Time

// busMsg signals a watcher event so a poll result repaints
// immediately instead of waiting for the next tick.
type busMsg struct{}

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Model is the monitor's bubbletea model.
type Model struct {
	client ocs.Client
	panels []Panel

	styles theme.Styles
	spin   spinner.Model
	keys   keyMap

	width    int
	height   int
	now      time.Time
	quitting bool

	bus    *events.Bus
	events chan events.Event
	unsub  events.UnsubscribeFunc
}

// New builds a monitor over the given panels. A non-nil bus makes
// the monitor repaint on every watcher event.
func New(client ocs.Client, panels []Panel, bus *events.Bus) Model {
	t := theme.Current()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(t.Primary)

	m := Model{
		client: client,
		panels: panels,
		styles: theme.NewStyles(t),
		spin:   sp,
		keys:   keys,
		now:    time.Now(),
	}
	if bus != nil {
		ch := make(chan events.Event, 64)
		m.bus = bus
		m.events = ch
		m.unsub = bus.SubscribeAll(func(e events.Event) {
			select {
			case ch <- e:
			default:
				// Dropped under burst; the tick repaints anyway.
			}
		})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, tick()}
	if m.events != nil {
		cmds = append(cmds, waitEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func waitEvent(ch chan events.Event) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return busMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			if m.unsub != nil {
				m.unsub()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()
	case busMsg:
		m.now = time.Now()
		return m, waitEvent(m.events)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render("ocsdeck monitor"))
	b.WriteString(" ")
	b.WriteString(m.spin.View())
	b.WriteString(m.styles.Dim.Render(m.now.Format("15:04:05")))
	b.WriteString("\n\n")

	for _, p := range m.panels {
		b.WriteString(m.renderPanel(p))
		b.WriteString("\n")
	}

	if m.bus != nil {
		if hist := m.bus.History(1); len(hist) > 0 {
			b.WriteString(m.clip(m.styles.Dim.Render(lastEventLine(hist[0]))))
			b.WriteString("\n")
		}
	}
	b.WriteString(m.styles.Help.Render("q quit"))
	return b.String()
}

// lastEventLine summarizes the newest bus event for the footer.
func lastEventLine(e events.Event) string {
	at := e.EventTimestamp().Local().Format("15:04:05")
	switch ev := e.(type) {
	case events.SessionUpdateEvent:
		return fmt.Sprintf("%s %s %s is %s", at, ev.Agent, ev.Op, ev.Status)
	case events.PollFailedEvent:
		return fmt.Sprintf("%s %s %s poll failed: %s", at, ev.Agent, ev.Op, ev.Msg)
	case events.IndicatorChangeEvent:
		return fmt.Sprintf("%s %s %s: %s -> %s", at, ev.Agent, ev.Signal, ev.From, ev.To)
	}
	return fmt.Sprintf("%s %s", at, e.EventType())
}

func (m Model) renderPanel(p Panel) string {
	report := p.Engine.Evaluate(indicator.ConnState{
		Router: m.client.Connected(),
		Agent:  m.client.AgentConnected(p.Addr),
	})

	var b strings.Builder

	title := fmt.Sprintf("%s  %s", p.Agent, m.badge(report.Worst()))
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("  %s %s   %s %s\n",
		m.light(report.Router), m.styles.Dim.Render("router"),
		m.light(report.Agent), m.styles.Dim.Render("agent")))

	for _, sig := range p.Engine.Signals() {
		val := report.Signals[sig.Name]
		line := fmt.Sprintf("  %s %s", m.light(val), format.Pad(sig.Name, 20))
		if sess, ok := p.Store.Get(sig.Op); ok && sess.DataTimestamp > 0 {
			age := float64(m.now.UnixNano())/1e9 - sess.DataTimestamp
			line += m.styles.Dim.Render(format.Age(age))
		}
		b.WriteString(m.clip(line))
		b.WriteString("\n")
	}

	b.WriteString(m.renderSessions(p))
	return b.String()
}

// renderSessions lists the panel's operation sessions, running ones
// first, with their latest message.
func (m Model) renderSessions(p Panel) string {
	ops := p.Store.Ops()
	sort.Slice(ops, func(i, j int) bool {
		si, _ := p.Store.Get(ops[i])
		sj, _ := p.Store.Get(ops[j])
		if ai, aj := si.Status.Active(), sj.Status.Active(); ai != aj {
			return ai
		}
		return ops[i] < ops[j]
	})

	var b strings.Builder
	for _, op := range ops {
		sess, ok := p.Store.Get(op)
		if !ok {
			continue
		}
		line := fmt.Sprintf("    %s %s", format.Pad(op, 14), m.statusWord(sess.Status))
		if sess.Message != "" {
			line += "  " + m.styles.Dim.Render(sess.Message)
		}
		b.WriteString(m.clip(line))
		b.WriteString("\n")
	}
	return b.String()
}

// clip truncates a rendered line to the terminal width.
func (m Model) clip(line string) string {
	if m.width <= 0 {
		return line
	}
	return truncate.StringWithTail(line, uint(m.width), "…")
}

// light renders one indicator as a glyph plus its name, so state is
// never carried by color alone.
func (m Model) light(v indicator.Value) string {
	return m.valueStyle(v).Render("●") + " " + string(v)
}

func (m Model) badge(v indicator.Value) string {
	return m.valueStyle(v).Render(strings.ToUpper(string(v)))
}

func (m Model) statusWord(st session.Status) string {
	switch st {
	case session.StatusRunning:
		return m.styles.Success.Render(string(st))
	case session.StatusStarting:
		return m.styles.Info.Render(string(st))
	case session.StatusDone:
		return m.styles.Dim.Render(string(st))
	default:
		return m.styles.Warning.Render(string(st))
	}
}

func (m Model) valueStyle(v indicator.Value) lipgloss.Style {
	switch v {
	case indicator.Good:
		return m.styles.Success
	case indicator.Bad:
		return m.styles.Error
	case indicator.Warning:
		return m.styles.Warning
	default:
		return m.styles.Dim
	}
}

// Run starts the monitor in the alternate screen.
func Run(client ocs.Client, panels []Panel, bus *events.Bus) error {
	p := tea.NewProgram(New(client, panels, bus), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package events

import "time"

// BaseEvent carries the fields every deck event shares.
type BaseEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent,omitempty"`
}

func (e BaseEvent) EventType() string         { return e.Type }
func (e BaseEvent) EventTimestamp() time.Time { return e.Timestamp }

func base(typ, agent string) BaseEvent {
	return BaseEvent{Type: typ, Timestamp: time.Now().UTC(), Agent: agent}
}

// SessionUpdateEvent is published by the watcher scheduler after each
// poll that reached the agent.
type SessionUpdateEvent struct {
	BaseEvent
	Op     string `json:"op"`
	Status string `json:"status"`
	Seq    uint64 `json:"seq,omitempty"`
}

// NewSessionUpdateEvent builds a session_update event.
func NewSessionUpdateEvent(agent, op, status string, seq uint64) SessionUpdateEvent {
	return SessionUpdateEvent{BaseEvent: base("session_update", agent), Op: op, Status: status, Seq: seq}
}

// PollFailedEvent is published when a poll itself failed at the
// transport level (the operation's stored session is untouched).
type PollFailedEvent struct {
	BaseEvent
	Op  string `json:"op"`
	Msg string `json:"msg"`
}

// NewPollFailedEvent builds a poll_failed event.
func NewPollFailedEvent(agent, op, msg string) PollFailedEvent {
	return PollFailedEvent{BaseEvent: base("poll_failed", agent), Op: op, Msg: msg}
}

// IndicatorChangeEvent is published when a derived indicator moves to
// a new value.
type IndicatorChangeEvent struct {
	BaseEvent
	Signal string `json:"signal"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// NewIndicatorChangeEvent builds an indicator_change event.
func NewIndicatorChangeEvent(agent, signal, from, to string) IndicatorChangeEvent {
	return IndicatorChangeEvent{BaseEvent: base("indicator_change", agent), Signal: signal, From: from, To: to}
}

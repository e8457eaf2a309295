// Package events provides the deck's pub/sub event bus. The watcher
// scheduler publishes poll outcomes; the live monitor and the robot
// stream subscribe. StreamJSON mirrors the bus as JSON lines for
// robot consumers.
package events

import (
	"container/ring"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Event is implemented by everything published on the bus.
type Event interface {
	EventType() string
	EventTimestamp() time.Time
}

// Handler is a subscription callback.
type Handler func(Event)

// UnsubscribeFunc removes a subscription; calling it more than once
// is harmless.
type UnsubscribeFunc func()

type handlerEntry struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers. Publish is fire-and-forget:
// handlers run in their own goroutines and can never block a
// publisher (the watcher tick path depends on this).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]handlerEntry
	nextID      atomic.Uint64

	historyMu   sync.RWMutex
	history     *ring.Ring
	historySize int
}

// NewBus creates a bus retaining historySize recent events.
func NewBus(historySize int) *Bus {
	if historySize < 1 {
		historySize = 100
	}
	return &Bus{
		subscribers: make(map[string][]handlerEntry),
		history:     ring.New(historySize),
		historySize: historySize,
	}
}

// Subscribe registers a handler for one event type. "*" subscribes
// to everything.
func (b *Bus) Subscribe(eventType string, handler Handler) UnsubscribeFunc {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscribers[eventType] = append(b.subscribers[eventType], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.subscribers[eventType]
		for i, h := range handlers {
			if h.id == id {
				handlers[i] = handlers[len(handlers)-1]
				b.subscribers[eventType] = handlers[:len(handlers)-1]
				return
			}
		}
	}
}

// SubscribeAll registers a wildcard handler.
func (b *Bus) SubscribeAll(handler Handler) UnsubscribeFunc {
	return b.Subscribe("*", handler)
}

// Publish records the event and dispatches it asynchronously.
func (b *Bus) Publish(event Event) {
	b.record(event)
	for _, entry := range b.handlersFor(event.EventType()) {
		go entry.handler(event)
	}
}

// PublishSync dispatches and waits for every handler. Tests use this
// to avoid sleeping.
func (b *Bus) PublishSync(event Event) {
	b.record(event)
	var wg sync.WaitGroup
	for _, entry := range b.handlersFor(event.EventType()) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(entry.handler)
	}
	wg.Wait()
}

func (b *Bus) record(event Event) {
	b.historyMu.Lock()
	b.history.Value = event
	b.history = b.history.Next()
	b.historyMu.Unlock()
}

func (b *Bus) handlersFor(eventType string) []handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]handlerEntry, 0, len(b.subscribers[eventType])+len(b.subscribers["*"]))
	entries = append(entries, b.subscribers[eventType]...)
	entries = append(entries, b.subscribers["*"]...)
	return entries
}

// History returns up to limit recent events, newest first.
func (b *Bus) History(limit int) []Event {
	if limit <= 0 || limit > b.historySize {
		limit = b.historySize
	}

	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	out := make([]Event, 0, limit)
	r := b.history.Prev()
	for i := 0; i < limit; i++ {
		if e, ok := r.Value.(Event); ok {
			out = append(out, e)
		}
		r = r.Prev()
	}
	return out
}

// StreamJSON mirrors every event to w as JSON lines until the
// returned function is called.
func (b *Bus) StreamJSON(w io.Writer) UnsubscribeFunc {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return b.SubscribeAll(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		enc.Encode(e)
	})
}

// SubscriberCount returns the subscriber count for one event type.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

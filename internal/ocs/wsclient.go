package ocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures the websocket router adapter.
type WSConfig struct {
	URL         string        // router websocket endpoint
	Realm       string        // router realm to join
	CallTimeout time.Duration // per-call reply deadline
	// AgentWindow is how long after the last heartbeat an agent is
	// still considered registered.
	AgentWindow time.Duration
}

func (c WSConfig) withDefaults() WSConfig {
	out := c
	if out.CallTimeout <= 0 {
		out.CallTimeout = 10 * time.Second
	}
	if out.AgentWindow <= 0 {
		out.AgentWindow = 15 * time.Second
	}
	return out
}

// wsFrame is the adapter's call/reply/event envelope. The framing is
// private to this adapter; nothing outside the package sees it.
type wsFrame struct {
	ID      uint64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Realm   string          `json:"realm,omitempty"`
	Address string          `json:"address,omitempty"`
	Op      string          `json:"op,omitempty"`
	Params  Params          `json:"params,omitempty"`
	Event   string          `json:"event,omitempty"`
	Stat    int             `json:"stat"`
	Msg     string          `json:"msg,omitempty"`
	Session json.RawMessage `json:"session,omitempty"`
}

// WSClient implements Client over a single websocket connection to
// the router. Calls are correlated by id through a pending map; the
// read loop is the only reader and writes are serialized by a mutex.
type WSClient struct {
	cfg WSConfig

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	lastSeen  map[string]time.Time // agent address -> last heartbeat

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan wsFrame
	nextID    atomic.Uint64

	now Clock
}

// DialWS connects to the router and starts the read loop.
func DialWS(ctx context.Context, cfg WSConfig) (*WSClient, error) {
	cfg = cfg.withDefaults()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing router %s: %w", cfg.URL, err)
	}

	c := &WSClient{
		cfg:       cfg,
		conn:      conn,
		connected: true,
		lastSeen:  make(map[string]time.Time),
		pending:   make(map[uint64]chan wsFrame),
		now:       time.Now,
	}

	if err := c.write(wsFrame{Method: "join", Realm: cfg.Realm}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining realm %s: %w", cfg.Realm, err)
	}

	go c.readLoop()
	return c, nil
}

// Close tears down the connection. Pending calls fail with a
// transport error.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	c.failPending(errors.New("connection closed"))

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *WSClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *WSClient) AgentConnected(addr Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen, ok := c.lastSeen[addr.String()]
	if !ok {
		return false
	}
	return c.now().Sub(seen) <= c.cfg.AgentWindow
}

func (c *WSClient) RunTask(ctx context.Context, addr Address, op string, params Params) error {
	_, _, err := c.call(ctx, "run", addr, op, params)
	return Dispatch("run", addr, op, err)
}

func (c *WSClient) AbortTask(ctx context.Context, addr Address, op string) error {
	_, _, err := c.call(ctx, "abort", addr, op, nil)
	return Dispatch("abort", addr, op, err)
}

func (c *WSClient) StartProc(ctx context.Context, addr Address, op string, params Params) error {
	_, _, err := c.call(ctx, "start", addr, op, params)
	return Dispatch("start", addr, op, err)
}

func (c *WSClient) StopProc(ctx context.Context, addr Address, op string) error {
	_, _, err := c.call(ctx, "stop", addr, op, nil)
	return Dispatch("stop", addr, op, err)
}

func (c *WSClient) FetchSession(ctx context.Context, addr Address, op string) (SessionSnapshot, PollMeta, error) {
	reply, meta, err := c.call(ctx, "status", addr, op, nil)
	if err != nil {
		return SessionSnapshot{}, PollMeta{Method: "status", Stat: 1, Msg: err.Error()}, err
	}
	var snap SessionSnapshot
	if len(reply.Session) > 0 {
		if uerr := json.Unmarshal(reply.Session, &snap); uerr != nil {
			meta.Stat = 1
			meta.Msg = "malformed session payload: " + uerr.Error()
			return SessionSnapshot{}, meta, nil
		}
	}
	return snap, meta, nil
}

// call sends one request frame and waits for its correlated reply.
func (c *WSClient) call(ctx context.Context, method string, addr Address, op string, params Params) (wsFrame, PollMeta, error) {
	if !c.Connected() {
		return wsFrame{}, PollMeta{Method: method, Stat: 1, Msg: ErrNotConnected.Error()}, ErrNotConnected
	}

	id := c.nextID.Add(1)
	ch := make(chan wsFrame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	frame := wsFrame{
		ID:      id,
		Method:  method,
		Address: addr.OpURI(op),
		Op:      op,
		Params:  params,
	}
	if err := c.write(frame); err != nil {
		return wsFrame{}, PollMeta{Method: method, Stat: 1, Msg: err.Error()}, err
	}

	timeout := time.NewTimer(c.cfg.CallTimeout)
	defer timeout.Stop()

	select {
	case reply := <-ch:
		meta := PollMeta{Method: method, Stat: reply.Stat, Msg: reply.Msg}
		if reply.Stat != 0 {
			return reply, meta, fmt.Errorf("%s %s: agent returned stat %d: %s", method, addr.OpURI(op), reply.Stat, reply.Msg)
		}
		return reply, meta, nil
	case <-timeout.C:
		return wsFrame{}, PollMeta{Method: method, Stat: 1, Msg: "call timed out"}, fmt.Errorf("%s %s: call timed out", method, addr.OpURI(op))
	case <-ctx.Done():
		return wsFrame{}, PollMeta{Method: method, Stat: 1, Msg: ctx.Err().Error()}, ctx.Err()
	}
}

func (c *WSClient) write(frame wsFrame) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

// readLoop is the sole reader. Replies route to pending calls by id;
// heartbeat events refresh agent liveness.
func (c *WSClient) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			c.connected = false
			c.conn = nil
			c.mu.Unlock()
			c.failPending(err)
			return
		}

		switch {
		case frame.Event == "heartbeat":
			c.mu.Lock()
			c.lastSeen[frame.Address] = c.now()
			c.mu.Unlock()
		case frame.Event == "leave":
			c.mu.Lock()
			delete(c.lastSeen, frame.Address)
			c.mu.Unlock()
		case frame.ID != 0:
			c.pendingMu.Lock()
			ch, ok := c.pending[frame.ID]
			c.pendingMu.Unlock()
			if ok {
				ch <- frame
			}
		}
	}
}

func (c *WSClient) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		select {
		case ch <- wsFrame{ID: id, Stat: 1, Msg: err.Error()}:
		default:
		}
		delete(c.pending, id)
	}
}

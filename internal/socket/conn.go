package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// AckTimeout bounds every acknowledged emit when the caller's context
	// carries no deadline of its own.
	AckTimeout = 10 * time.Second

	maxBackoff     = 30 * time.Second
	initialBackoff = time.Second
)

// Envelope is the wire frame exchanged with the backend event endpoint.
// Server acks come back with Event == "ack" and the matching AckID.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID int64           `json:"ackId,omitempty"`
}

// Handler receives the raw data of one inbound event. Handlers run on the
// single dispatch goroutine, in arrival order.
type Handler func(data json.RawMessage)

// Bus is the event surface components borrow from the shared connection.
// They emit and listen; only the Manager creates or destroys the socket.
type Bus interface {
	On(event string, h Handler) (off func())
	OnConnect(h func()) (off func())
	OnDisconnect(h func()) (off func())
	Emit(event string, v any) error
	EmitWithAck(ctx context.Context, event string, v any) (json.RawMessage, error)
	Connected() bool
}

type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc establishes one transport-level connection attempt.
type DialFunc func(ctx context.Context) (wireConn, error)

// Dialer returns a DialFunc for the backend event endpoint, carrying the
// bearer credential both in the handshake header and as a query parameter.
func Dialer(rawURL string, token func() string) DialFunc {
	return func(ctx context.Context) (wireConn, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("socket url: %w", err)
		}
		tok := token()
		q := u.Query()
		q.Set("token", tok)
		u.RawQuery = q.Encode()

		hdr := http.Header{}
		if tok != "" {
			hdr.Set("Authorization", "Bearer "+tok)
		}
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), hdr)
		if err != nil {
			return nil, err
		}
		return ws, nil
	}
}

type hook struct {
	id int64
	fn func()
}

type listener struct {
	id int64
	fn Handler
}

// Conn multiplexes one long-lived socket across every consumer. It redials
// with capped backoff after transport errors; registered handlers survive
// reconnects, and connect hooks re-fire so consumers can re-sync state.
type Conn struct {
	log  *zap.Logger
	dial DialFunc

	mu        sync.Mutex
	ws        wireConn
	handlers  map[string][]listener
	onConnect []hook
	onClose   []hook
	pending   map[int64]chan json.RawMessage
	nextID    atomic.Int64
	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
}

func NewConn(dial DialFunc, log *zap.Logger) *Conn {
	return &Conn{
		log:      log,
		dial:     dial,
		handlers: map[string][]listener{},
		pending:  map[int64]chan json.RawMessage{},
		done:     make(chan struct{}),
	}
}

// Start begins dialing and dispatching. Safe to call once; the Manager owns
// the call.
func (c *Conn) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	go c.run(ctx)
}

// Close tears the transport down for good. Pending acks fail, handlers are
// not called again.
func (c *Conn) Close() {
	c.mu.Lock()
	cancel := c.cancel
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if ws != nil {
		_ = ws.Close()
	}
}

func (c *Conn) Connected() bool { return c.connected.Load() }

func (c *Conn) On(event string, h Handler) (off func()) {
	id := c.nextID.Add(1)
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], listener{id: id, fn: h})
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		ls := c.handlers[event]
		for i := range ls {
			if ls[i].id == id {
				c.handlers[event] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
	}
}

func (c *Conn) OnConnect(h func()) (off func()) {
	id := c.nextID.Add(1)
	c.mu.Lock()
	c.onConnect = append(c.onConnect, hook{id: id, fn: h})
	c.mu.Unlock()
	return func() { c.dropHook(&c.onConnect, id) }
}

func (c *Conn) OnDisconnect(h func()) (off func()) {
	id := c.nextID.Add(1)
	c.mu.Lock()
	c.onClose = append(c.onClose, hook{id: id, fn: h})
	c.mu.Unlock()
	return func() { c.dropHook(&c.onClose, id) }
}

func (c *Conn) dropHook(hooks *[]hook, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs := *hooks
	for i := range hs {
		if hs[i].id == id {
			*hooks = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// Emit sends a fire-and-forget event. It is a no-op error while the
// connection is down; consumers tolerate the gap and re-sync on reconnect.
func (c *Conn) Emit(event string, v any) error {
	return c.write(Envelope{Event: event, Data: marshal(v)})
}

// EmitWithAck sends an event and waits for the server's ack envelope.
func (c *Conn) EmitWithAck(ctx context.Context, event string, v any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, AckTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Envelope{Event: event, Data: marshal(v), AckID: id}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", event, ctx.Err())
	case raw := <-ch:
		return raw, ackError(event, raw)
	}
}

// ackError surfaces a server-side failure carried inside an ack body.
func ackError(event string, raw json.RawMessage) error {
	var e struct {
		Error string `json:"error"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return fmt.Errorf("%s: %s", event, e.Error)
	}
	return nil
}

var errNotConnected = errors.New("socket not connected")

func (c *Conn) write(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return errNotConnected
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	backoff := initialBackoff
	for {
		ws, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("socket connect error", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		c.mu.Lock()
		c.ws = ws
		hooks := append([]hook(nil), c.onConnect...)
		c.mu.Unlock()
		c.connected.Store(true)
		reconnectsTotal.Inc()
		c.log.Info("socket connected")
		for _, h := range hooks {
			h.fn()
		}

		c.readLoop(ws)

		c.connected.Store(false)
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		closers := append([]hook(nil), c.onClose...)
		c.mu.Unlock()
		_ = ws.Close()
		for _, h := range closers {
			h.fn()
		}
		if ctx.Err() != nil {
			return
		}
		c.log.Info("socket disconnected, redialing")
	}
}

func (c *Conn) readLoop(ws wireConn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("socket: undecodable frame", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

func (c *Conn) dispatch(env Envelope) {
	eventsTotal.WithLabelValues(env.Event).Inc()
	if env.Event == "ack" {
		c.mu.Lock()
		ch := c.pending[env.AckID]
		c.mu.Unlock()
		if ch != nil {
			ch <- env.Data
		}
		return
	}
	c.mu.Lock()
	ls := append([]listener(nil), c.handlers[env.Event]...)
	c.mu.Unlock()
	for _, l := range ls {
		l.fn(env.Data)
	}
}

func marshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

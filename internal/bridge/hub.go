// Package bridge connects the coordinator to the extension host over a
// WebSocket. The host executes browser calls (active tab lookup, message
// delivery to a tab, script injection) on the coordinator's behalf and
// forwards shortcut and icon events back to it.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quickask/internal/logger"
	"quickask/internal/message"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxFrameSize       = 1 << 20
	defaultCallTimeout = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("bridge: no extension host connected")
	ErrDisconnected = errors.New("bridge: extension host disconnected")
	ErrTimeout      = errors.New("bridge: call timed out")
)

// RemoteError is a failure reported by the extension host.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: %s failed: %s", e.Method, e.Message)
}

// Frame is the single envelope used in both directions. Calls carry ID and
// Method, replies carry ID and Result or Error, events carry Event.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Command string          `json:"command,omitempty"`
	Tab     *message.Tab    `json:"tab,omitempty"`
}

// EventHandler receives activation events forwarded by the host.
type EventHandler func(ctx context.Context, ev message.ActivationEvent)

// Options tunes a Hub.
type Options struct {
	CallTimeout time.Duration
	OnEvent     EventHandler
}

// Hub holds at most one host connection. A newer connection replaces the
// older one.
type Hub struct {
	log      *slog.Logger
	timeout  time.Duration
	onEvent  EventHandler
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *hostConn
}

// NewHub builds a hub; it serves the upgrade endpoint via ServeHTTP.
func NewHub(log *slog.Logger, opts Options) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Hub{
		log:     log,
		timeout: opts.CallTimeout,
		onEvent: opts.OnEvent,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetEventHandler replaces the activation event handler. It must be called
// before the first host connects.
func (h *Hub) SetEventHandler(fn EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEvent = fn
}

// Connected reports whether a host is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("bridge upgrade failed", "err", err)
		return
	}
	hc := newHostConn(ws)

	h.mu.Lock()
	prev := h.conn
	h.conn = hc
	h.mu.Unlock()
	if prev != nil {
		h.log.Info("bridge host replaced")
		prev.close(ErrDisconnected)
	}
	h.log.Info("bridge host connected", "remote", r.RemoteAddr)

	go hc.keepalive()
	err = h.readLoop(hc)

	h.mu.Lock()
	if h.conn == hc {
		h.conn = nil
	}
	h.mu.Unlock()
	hc.close(ErrDisconnected)

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		h.log.Warn("bridge host dropped", "err", err)
		return
	}
	h.log.Info("bridge host disconnected")
}

// Call sends one request to the host and waits for its reply, the call
// timeout, ctx cancellation or a disconnect, whichever comes first.
func (h *Hub) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	h.mu.Lock()
	hc := h.conn
	h.mu.Unlock()
	if hc == nil {
		return nil, ErrNotConnected
	}

	frame := Frame{ID: uuid.NewString(), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("bridge: marshal %s params: %w", method, err)
		}
		frame.Params = raw
	}

	ch := make(chan reply, 1)
	if !hc.register(frame.ID, ch) {
		return nil, ErrDisconnected
	}
	defer hc.unregister(frame.ID)

	if err := hc.write(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case rep := <-ch:
		if rep.err != nil {
			return nil, rep.err
		}
		if rep.remote != "" {
			return nil, &RemoteError{Method: method, Message: rep.remote}
		}
		return rep.result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, h.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) readLoop(hc *hostConn) error {
	for {
		var f Frame
		if err := hc.ws.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.log.Warn("bridge dropped malformed frame", "err", err)
				continue
			}
			return err
		}
		switch {
		case f.Event != "":
			h.dispatchEvent(f)
		case f.ID != "":
			if !hc.deliver(f.ID, reply{result: f.Result, remote: f.Error}) {
				h.log.Debug("bridge reply without pending call", "id", f.ID)
			}
		default:
			h.log.Debug("bridge ignored frame")
		}
	}
}

func (h *Hub) dispatchEvent(f Frame) {
	h.mu.Lock()
	fn := h.onEvent
	h.mu.Unlock()
	if fn == nil {
		h.log.Debug("bridge event without handler", "event", f.Event)
		return
	}
	ev := message.ActivationEvent{Source: f.Event, Command: f.Command, Tab: f.Tab}
	// Handlers call back into the hub, so they cannot run on the read loop.
	go fn(context.Background(), ev)
}

type reply struct {
	result json.RawMessage
	remote string
	err    error
}

type hostConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan reply
	closed  bool
	done    chan struct{}
}

func newHostConn(ws *websocket.Conn) *hostConn {
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &hostConn{
		ws:      ws,
		pending: make(map[string]chan reply),
		done:    make(chan struct{}),
	}
}

func (c *hostConn) register(id string, ch chan reply) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.pending[id] = ch
	return true
}

func (c *hostConn) unregister(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// deliver hands rep to the waiting call. The entry is removed under the lock
// so each call receives at most one reply.
func (c *hostConn) deliver(id string, rep reply) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- rep
	return true
}

func (c *hostConn) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(f)
}

func (c *hostConn) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *hostConn) close(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]chan reply)
	close(c.done)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- reply{err: cause}
	}
	_ = c.ws.Close()
}

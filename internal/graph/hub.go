package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hurttlocker/kwgraph/internal/engine"
	"github.com/hurttlocker/kwgraph/internal/metrics"
	"github.com/hurttlocker/kwgraph/internal/scene"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 16
)

// Message types sent to viewers.
const (
	MessageHello  = "hello"
	MessageScene  = "scene"
	MessageResult = "result"
	MessageError  = "error"
)

// Message is one frame pushed to a viewer.
type Message struct {
	Type    string       `json:"type"`
	Session string       `json:"session,omitempty"`
	Scene   *scene.Scene `json:"scene,omitempty"`
	Result  any          `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// SessionFactory creates the engine session backing one viewer.
type SessionFactory func(ctx context.Context) (*engine.Session, error)

// Hub serves WebSocket viewers. Every viewer gets its own engine session,
// so view state, layout and viewport are never shared between tabs; only
// the keyword store is. Scene changes are coalesced per viewer: a burst of
// changes produces one push of the latest scene.
type Hub struct {
	newSession SessionFactory
	logger     *slog.Logger
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	byID    map[string]*client
}

type client struct {
	id      string
	conn    *websocket.Conn
	session *engine.Session
	send    chan []byte
	dirty   chan struct{}
}

func (c *client) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// NewHub creates a hub that builds viewer sessions with newSession.
func NewHub(newSession SessionFactory, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		newSession: newSession,
		logger:     logger.With("component", "hub"),
		metrics:    m,
		upgrader: websocket.Upgrader{
			// The viewer is a local tool; any origin may connect.
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
		byID:    make(map[string]*client),
	}
}

// Run waits until ctx is done, then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Session returns the engine session of the connected viewer with id.
func (h *Hub) Session(id string) (*engine.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.byID[id]
	if !ok {
		return nil, false
	}
	return c.session, true
}

// ServeHTTP upgrades the request and serves one viewer until it disconnects.
// The viewer's session lives exactly as long as the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	sess, err := h.newSession(r.Context())
	if err != nil {
		h.logger.Error("creating viewer session", "error", err)
		_ = conn.WriteJSON(Message{Type: MessageError, Error: err.Error()})
		_ = conn.Close()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		session: sess,
		send:    make(chan []byte, sendBuffer),
		dirty:   make(chan struct{}, 1),
	}
	off := sess.OnChange(c.markDirty)
	defer func() {
		off()
		cancel()
		sess.Close()
	}()
	h.add(c)

	h.deliver(c, Message{Type: MessageHello, Session: c.id})
	sc := sess.Scene()
	h.deliver(c, Message{Type: MessageScene, Scene: &sc})

	go func() { _ = sess.Run(ctx) }()
	go h.pushScenes(ctx, c)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.byID[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.Clients(n)
	h.logger.Debug("viewer connected", "session", c.id, "clients", n)
}

// remove forgets c and closes its send channel. It is safe to call twice.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	delete(h.byID, c.id)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.Clients(n)
	h.logger.Debug("viewer disconnected", "session", c.id, "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	list := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	h.mu.Unlock()
	for _, c := range list {
		h.remove(c)
	}
}

// pushScenes sends c's latest scene whenever its session changes.
func (h *Hub) pushScenes(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.dirty:
			sc := c.session.Scene()
			if !h.queue(c, Message{Type: MessageScene, Scene: &sc}) {
				h.logger.Warn("dropping slow viewer", "session", c.id)
				h.remove(c)
				return
			}
		}
	}
}

// deliver queues msg for c unless c has gone away or is backed up.
func (h *Hub) deliver(c *client, msg Message) {
	h.queue(c, msg)
}

// queue reports false only when c is connected but its buffer is full.
func (h *Hub) queue(c *client, msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encoding message", "type", msg.Type, "error", err)
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var g Gesture
		if err := c.conn.ReadJSON(&g); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("viewer read failed", "error", err)
			}
			return
		}
		result, err := Apply(context.Background(), c.session, g)
		switch {
		case err != nil:
			h.deliver(c, Message{Type: MessageError, Error: err.Error()})
		case result != nil:
			h.deliver(c, Message{Type: MessageResult, Result: result})
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

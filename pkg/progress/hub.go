package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	defaultInterval = time.Second
	sendBufferSize  = 64
)

// Hub pushes tracker snapshots to every connected WebSocket client on
// a fixed interval. Clients only listen; inbound messages besides
// close and pong are discarded.
type Hub struct {
	tracker  *Tracker
	interval time.Duration
	logger   *zap.Logger

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex

	upgrader websocket.Upgrader
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(tracker *Tracker, interval time.Duration, logger *zap.Logger) *Hub {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		tracker:    tracker,
		interval:   interval,
		logger:     logger,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The server binds to localhost for a local tool.
				return true
			},
		},
	}
}

// Run drives registration and the snapshot ticker until ctx is
// cancelled. A final snapshot goes out before shutdown so clients see
// the terminal state.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			ConnectedClients.Set(float64(total))
			h.logger.Debug("progress-client-connected", zap.Int("clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			ConnectedClients.Set(float64(total))
			h.logger.Debug("progress-client-disconnected", zap.Int("clients", total))

		case <-ticker.C:
			h.broadcastSnapshot()

		case <-ctx.Done():
			h.broadcastSnapshot()
			h.closeAll()
			return
		}
	}
}

func (h *Hub) broadcastSnapshot() {
	h.mu.RLock()
	idle := len(h.clients) == 0
	h.mu.RUnlock()
	if idle {
		return
	}

	data, err := json.Marshal(h.tracker.Snapshot())
	if err != nil {
		h.logger.Warn("progress-snapshot-marshal-failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer: drop it rather than stall the run.
			delete(h.clients, c)
			close(c.send)
		}
	}
	SnapshotsBroadcastTotal.Inc()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	ConnectedClients.Set(0)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request and attaches the connection to the
// hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("progress-upgrade-failed", zap.Error(err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump drains the connection so close frames and pongs are
// processed, discarding everything else.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

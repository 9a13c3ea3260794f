package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"calldesk/internal/callstore"
	"calldesk/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon binds loopback or LAN only; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type hubClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	ping time.Duration
}

// Hub fans store changes out to every connected subscriber. It implements
// callstore.Publisher, so wiring is a single SetPublisher call.
type Hub struct {
	logger     *slog.Logger
	clients    map[*hubClient]struct{}
	broadcast  chan []byte
	register   chan *hubClient
	unregister chan *hubClient
	seq        atomic.Uint64
	connected  atomic.Int64
	ping       time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewHub builds an idle hub; Start begins dispatching. A non-positive ping
// interval falls back to the default.
func NewHub(logger *slog.Logger, ping time.Duration) *Hub {
	if ping <= 0 {
		ping = pingInterval
	}
	return &Hub{
		logger:     logging.NewComponentLogger(logger, "feed"),
		clients:    make(map[*hubClient]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		ping:       ping,
	}
}

// Start launches the dispatch loop.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.running = true
	h.done = make(chan struct{})
	go h.run(ctx, h.done)
	return nil
}

// Stop shuts the dispatch loop down and disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	done := h.done
	h.mu.Unlock()

	close(done)
}

func (h *Hub) run(ctx context.Context, done chan struct{}) {
	defer func() {
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.connected.Store(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			h.logger.Debug("feed client connected",
				logging.Int64("clients", int64(len(h.clients))))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connected.Store(int64(len(h.clients)))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than stall the feed.
					delete(h.clients, client)
					close(client.send)
					h.connected.Store(int64(len(h.clients)))
					h.logger.Warn("evicting slow feed client",
						logging.String(logging.FieldImpact, "client must reconnect and resync"))
				}
			}
		}
	}
}

// Publish implements callstore.Publisher. Called inline by the store after
// every successful mutation; must never block.
func (h *Hub) Publish(change callstore.Change) {
	event := Event{
		EventID: uuid.NewString(),
		Table:   change.Table,
		Op:      change.Op,
		ID:      change.ID,
		Seq:     h.seq.Add(1),
		TS:      time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		h.logger.Error("refusing to publish malformed event",
			logging.Error(err))
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal feed event", logging.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("feed backlog full; dropping event",
			logging.String(logging.FieldImpact, "subscribers resync on reconnect"))
	}
}

// ClientCount reports connected subscribers, for the status surface.
func (h *Hub) ClientCount() int {
	return int(h.connected.Load())
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", logging.Error(err))
		return
	}
	client := &hubClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		ping: h.ping,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Subscribers never send application messages; the read loop exists to
	// notice disconnects and service pongs.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(c.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

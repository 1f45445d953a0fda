package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/scrypster/recall/pkg/types"
)

// Activity event types broadcast on /ws.
const (
	ActivityEventStored  = "event_stored"
	ActivityEventDropped = "event_dropped"
	ActivityContextServe = "context_served"
)

// ActivityEvent is one entry on the live activity feed.
type ActivityEvent struct {
	Type        string    `json:"type"`
	Kind        string    `json:"kind,omitempty"`   // event kind for ingest activity
	Ref         string    `json:"ref,omitempty"`    // contact key, URL or lane ID
	Reason      string    `json:"reason,omitempty"` // drop reason
	Lane        string    `json:"lane,omitempty"`
	ContextUsed bool      `json:"context_used,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ActivityHub fans engine activity out to connected WebSocket clients.
// It is wired to the engine via the OnEventStored, OnEventDropped and
// OnContextServed callbacks.
type ActivityHub struct {
	allowedOrigins []string

	clients    map[activityClient]bool
	broadcast  chan ActivityEvent
	register   chan activityClient
	unregister chan activityClient
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// activityClient allows for both real connections and mock clients.
type activityClient interface {
	getSendChannel() chan []byte
	close()
}

// wsClient is one WebSocket connection.
type wsClient struct {
	hub  *ActivityHub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) getSendChannel() chan []byte {
	return c.send
}

func (c *wsClient) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// NewActivityHub creates a hub accepting connections from the given
// origin patterns (host:port, no scheme).
func NewActivityHub(allowedOrigins []string) *ActivityHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &ActivityHub{
		allowedOrigins: allowedOrigins,
		clients:        make(map[activityClient]bool),
		broadcast:      make(chan ActivityEvent, 256),
		register:       make(chan activityClient),
		unregister:     make(chan activityClient),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Run starts the hub's fan-out loop.
func (h *ActivityHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Activity client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.getSendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Activity client disconnected (total: %d)", count)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: Failed to marshal activity event: %v", err)
				continue
			}

			// Full lock because slow clients get evicted below.
			h.mu.Lock()
			for client := range h.clients {
				sendChan := client.getSendChannel()
				select {
				case sendChan <- data:
				default:
					close(sendChan)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("Activity hub stopping...")
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *ActivityHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.getSendChannel())
		client.close()
	}
	h.clients = make(map[activityClient]bool)
	h.mu.Unlock()
}

// Broadcast queues an event for all connected clients. A full broadcast
// channel drops the event rather than blocking the engine.
func (h *ActivityHub) Broadcast(event ActivityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Println("WARNING: Activity broadcast channel full, dropping event")
	}
}

// EventStored is the engine OnEventStored callback.
func (h *ActivityHub) EventStored(kind types.EventKind, ref string) {
	h.Broadcast(ActivityEvent{Type: ActivityEventStored, Kind: string(kind), Ref: ref})
}

// EventDropped is the engine OnEventDropped callback.
func (h *ActivityHub) EventDropped(kind types.EventKind, reason string) {
	h.Broadcast(ActivityEvent{Type: ActivityEventDropped, Kind: string(kind), Reason: reason})
}

// ContextServed is the engine OnContextServed callback.
func (h *ActivityHub) ContextServed(lane string, contextUsed bool) {
	h.Broadcast(ActivityEvent{Type: ActivityContextServe, Lane: lane, ContextUsed: contextUsed})
}

// Register adds a client to the hub.
func (h *ActivityHub) Register(client activityClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *ActivityHub) Unregister(client activityClient) {
	h.unregister <- client
}

// ServeHTTP handles WebSocket upgrade requests on /ws.
func (h *ActivityHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends queued events to the connection.
func (c *wsClient) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			log.Printf("ERROR: WebSocket write failed: %v", err)
			return
		}
	}
}

// readPump drains the connection to detect disconnects. The feed is
// one-way; client messages are ignored.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// MockClient is a mock activity client for testing.
type MockClient struct {
	SendChan chan []byte
}

func (m *MockClient) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) close() {}

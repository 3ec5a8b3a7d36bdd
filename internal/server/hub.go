package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/spellkitchen/internal/events"
	"github.com/gorilla/websocket"
)

// Hub keepalive timings.
const (
	HeartbeatInterval = 20 * time.Second
	writeWait         = 3 * time.Second
	pongWait          = 60 * time.Second
)

// Hub fans ritual events out to every connected WebSocket client.
// Register, unregister and broadcast all go through channels owned by Run.
// Run must be called at most once.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	upgrader   websocket.Upgrader
	heartbeat  time.Duration
	done       chan struct{}
}

// NewHub allocates a hub. Call Run in a goroutine to start delivery.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow local connections
			},
		},
		heartbeat: HeartbeatInterval,
		done:      make(chan struct{}),
	}
}

// Run delivers broadcasts and sends a ping plus a heartbeat event every
// interval. It closes all clients and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
			}
			for {
				select {
				case c := <-h.register:
					_ = c.Close()
				default:
					return nil
				}
			}

		case c := <-h.register:
			h.clients[c] = struct{}{}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				_ = c.Close()
			}

		case msg := <-h.broadcast:
			h.writeAll(websocket.TextMessage, msg)

		case <-ticker.C:
			h.writeAll(websocket.PingMessage, nil)
			h.Publish(events.Heartbeat())
		}
	}
}

func (h *Hub) writeAll(messageType int, msg []byte) {
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(messageType, msg); err != nil {
			delete(h.clients, c)
			_ = c.Close()
		}
	}
}

// ServeHTTP upgrades the request and registers the connection. Client
// messages are read and discarded so pongs and closes are processed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		return
	}
	select {
	case <-h.done:
		_ = conn.Close()
		return
	default:
	}
	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
				_ = conn.Close()
			}
		}()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastJSON marshals v and queues it for every client. When the queue
// is full the message is dropped so the caller never blocks.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- b:
	default:
	}
}

// Publish implements events.Publisher.
func (h *Hub) Publish(e events.Event) {
	h.BroadcastJSON(e)
}

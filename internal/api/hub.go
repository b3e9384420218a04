package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"backstage/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The game client is same-origin in production; CORS already gates the
	// REST surface, so the socket accepts any origin here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushMessage is the wire shape the browser consumes for showNotification.
type pushMessage struct {
	Kind     string `json:"kind"` // "notification" | "event"
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
	Duration int64  `json:"duration_ms,omitempty"`
}

// Hub fans notifications and industry events out to connected clients.
// It implements notify.Notifier so the core never knows about websockets.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) Notify(message string, severity notify.Severity, duration time.Duration) {
	h.broadcast(pushMessage{
		Kind:     "notification",
		Message:  message,
		Severity: string(severity),
		Duration: duration.Milliseconds(),
	})
}

func (h *Hub) broadcast(msg pushMessage) {
	data, err := json.Marshal(&msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Serve upgrades one connection and parks it in the client set. Reads are
// drained and discarded — the socket is push-only.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

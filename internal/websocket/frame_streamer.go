package websocket

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FrameEvent is a single gateway occurrence pushed to connected dashboard
// clients: a decoded uplink, an ack reply, or a rejection.
type FrameEvent struct {
	Type      string                 `json:"type"` // "uplink", "ack", "rejected"
	Serial    string                 `json:"serial"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// FrameStreamer fans decoded-frame events out to every connected WebSocket
// dashboard client, mirroring the teacher's hub-with-register/unregister
// channels structure.
type FrameStreamer struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan FrameEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewFrameStreamer creates a new frame streamer.
func NewFrameStreamer() *FrameStreamer {
	return &FrameStreamer{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan FrameEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboard may be served from a different origin
			},
		},
	}
}

// Run starts the WebSocket hub loop. Call it once, in its own goroutine.
func (fs *FrameStreamer) Run() {
	for {
		select {
		case client := <-fs.register:
			fs.mu.Lock()
			fs.clients[client] = true
			n := len(fs.clients)
			fs.mu.Unlock()
			slog.Info("websocket client connected", "total", n)

		case client := <-fs.unregister:
			fs.mu.Lock()
			if _, ok := fs.clients[client]; ok {
				delete(fs.clients, client)
				client.Close()
			}
			n := len(fs.clients)
			fs.mu.Unlock()
			slog.Info("websocket client disconnected", "total", n)

		case event := <-fs.broadcast:
			fs.mu.RLock()
			for client := range fs.clients {
				if err := client.WriteJSON(event); err != nil {
					slog.Warn("websocket write failed", "error", err)
					client.Close()
					delete(fs.clients, client)
				}
			}
			fs.mu.RUnlock()
		}
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
func (fs *FrameStreamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := fs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	fs.register <- conn

	go func() {
		defer func() {
			fs.unregister <- conn
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// BroadcastEvent sends an event to all connected clients, dropping it
// silently if the broadcast channel is saturated.
func (fs *FrameStreamer) BroadcastEvent(event FrameEvent) {
	event.Timestamp = time.Now()
	select {
	case fs.broadcast <- event:
	default:
		slog.Warn("frame stream backpressure, dropping event", "type", event.Type, "serial", event.Serial)
	}
}

// StreamUplink broadcasts a successfully decoded uplink frame.
func (fs *FrameStreamer) StreamUplink(serial, method string, seq uint64, hasSeq bool) {
	fs.BroadcastEvent(FrameEvent{
		Type:   "uplink",
		Serial: serial,
		Data: map[string]interface{}{
			"method":  method,
			"seq":     seq,
			"has_seq": hasSeq,
		},
	})
}

// StreamAck broadcasts the ack a gateway sent back for a device.
func (fs *FrameStreamer) StreamAck(serial, status string) {
	fs.BroadcastEvent(FrameEvent{
		Type:   "ack",
		Serial: serial,
		Data: map[string]interface{}{
			"status": status,
		},
	})
}

// StreamRejected broadcasts a frame the gateway refused to process, along
// with the reason (parse error, auth failure, rate limit, ...).
func (fs *FrameStreamer) StreamRejected(serial, reason string) {
	fs.BroadcastEvent(FrameEvent{
		Type:   "rejected",
		Serial: serial,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// GetStatistics returns WebSocket hub statistics for the diagnostic endpoint.
func (fs *FrameStreamer) GetStatistics() map[string]interface{} {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return map[string]interface{}{
		"connected_clients": len(fs.clients),
		"broadcast_queue":   len(fs.broadcast),
	}
}

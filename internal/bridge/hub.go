package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// writeTimeout bounds one broadcast write per client. A stalled
// client is dropped rather than allowed to block the fan-out.
const writeTimeout = 2 * time.Second

// Hub fans broadcast frames out to the connected dashboard clients.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("dashboard client connected", zap.Int("clients", count))
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Info("dashboard client disconnected", zap.Int("clients", count))
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast writes one frame to every client. Clients that fail the
// write are closed and removed.
func (h *Hub) Broadcast(ctx context.Context, payload []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := conn.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.log.Warn("dashboard client write failed", zap.Error(err))
			_ = conn.Close(websocket.StatusPolicyViolation, "write timeout")
			h.Remove(conn)
		}
	}
}

// CloseAll disconnects every client, typically at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
}

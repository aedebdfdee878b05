package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/chatlane/chat-service/internal/router"
)

// Hub indexes live connections by session id and implements the router's
// Transport: fan-out is one marshal plus a non-blocking enqueue per
// recipient.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn // session id -> connection
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.id] = c
}

func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.conns[c.id]; ok && cur == c {
		delete(h.conns, c.id)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

func (h *Hub) SendTo(sessionID string, ev router.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("ws marshal event", "type", ev.Type, slog.Any("err", err))
		return
	}

	h.mu.RLock()
	c, ok := h.conns[sessionID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(data)
	}
}

func (h *Hub) SendToMany(sessionIDs []string, ev router.Event) {
	if len(sessionIDs) == 0 {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("ws marshal event", "type", ev.Type, slog.Any("err", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range sessionIDs {
		if c, ok := h.conns[id]; ok {
			c.enqueue(data)
		}
	}
}

package ws

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

// Conn wraps one websocket connection. Outbound delivery is an enqueue onto
// a buffered channel drained by writePump, so the router never blocks on a
// slow reader.
type Conn struct {
	id     string
	sock   *websocket.Conn
	send   chan []byte
	closed chan struct{}
}

func newConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{
		id:     id,
		sock:   sock,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// enqueue hands data to the write pump without blocking. A session whose
// buffer is full loses the event; a reader that slow is as good as gone.
func (c *Conn) enqueue(data []byte) {
	select {
	case <-c.closed:
	case c.send <- data:
	default:
		slog.Warn("ws send buffer full, dropping event", "session", c.id)
	}
}

func (c *Conn) writePump(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("ws write failed", "session", c.id, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
		case <-c.closed:
			c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.sock.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

func (c *Conn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.sock.Close()
}

package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Router is the event-handling core the transport feeds. Error replies to
// the originating session are the router's responsibility; the returned
// errors exist for logging and tests.
type Router interface {
	Connect(sessionID string)
	Disconnect(sessionID string)
	Register(sessionID, username string) error
	JoinRoom(sessionID, room string) error
	SendRoomMessage(sessionID, room, text string) error
	SendPrivateMessage(sessionID, recipient, text string) error
	ListRoomMembers(sessionID, room string)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	router   Router

	pingEvery time.Duration
}

func NewServer(hub *Hub, router Router) *Server {
	return &Server{
		hub:    hub,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	sessionID := uuid.NewString()
	c := newConn(sessionID, sock)
	s.hub.Add(c)
	go c.writePump(s.pingEvery)

	s.router.Connect(sessionID)
	slog.Info("ws connected", "session", sessionID, "remote", r.RemoteAddr)

	s.readLoop(c)

	// Disconnect is the one cancellation signal: it must clean up the
	// username binding and room membership no matter how the socket died.
	s.router.Disconnect(sessionID)
	s.hub.Remove(c)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "session", sessionID, "err", err)
	}
	slog.Info("ws disconnected", "session", sessionID)
}

func (s *Server) readLoop(c *Conn) {
	c.sock.SetReadLimit(1 << 20)
	c.sock.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("ws bad frame", "session", c.id, "err", err)
			continue
		}
		s.dispatch(c.id, msg)
	}
}

func (s *Server) dispatch(sessionID string, msg Inbound) {
	switch msg.Type {
	case TypeRegister:
		var p RegisterPayload
		if decode(msg.Payload, &p) {
			_ = s.router.Register(sessionID, p.Username)
		}
	case TypeJoinRoom:
		var p JoinRoomPayload
		if decode(msg.Payload, &p) {
			_ = s.router.JoinRoom(sessionID, p.Room)
		}
	case TypeRoomMessage:
		var p RoomMessagePayload
		if decode(msg.Payload, &p) {
			_ = s.router.SendRoomMessage(sessionID, p.Room, p.Text)
		}
	case TypePrivateMessage:
		var p PrivateMessagePayload
		if decode(msg.Payload, &p) {
			_ = s.router.SendPrivateMessage(sessionID, p.Recipient, p.Text)
		}
	case TypeRoomMembers:
		var p RoomMembersPayload
		if decode(msg.Payload, &p) {
			s.router.ListRoomMembers(sessionID, p.Room)
		}
	default:
		// ignore
	}
}

func decode(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, dst) == nil
}

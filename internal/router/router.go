// Package router is the event-handling core: it validates each inbound
// event against the session registry and room directory, applies the state
// transition, and computes the outbound fan-out. One mutex serializes the
// mutations so register/join/disconnect sequences are linearizable; delivery
// itself is a non-blocking enqueue per recipient connection.
package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/chatlane/chat-service/internal/directory"
	"github.com/chatlane/chat-service/internal/domain"
	"github.com/chatlane/chat-service/internal/registry"
)

// Transport delivers outbound events to sessions. Implementations must not
// block: a slow or dead recipient is the transport's problem, not the
// router's.
type Transport interface {
	SendTo(sessionID string, ev Event)
	SendToMany(sessionIDs []string, ev Event)
}

type RoomStore interface {
	EnsureRoom(ctx context.Context, name string) error
}

type MessageStore interface {
	RecordMessage(ctx context.Context, msg domain.Message) error
}

const persistTimeout = 5 * time.Second

type Router struct {
	mu        sync.Mutex
	registry  *registry.Registry
	rooms     *directory.Directory
	transport Transport
	roomStore RoomStore
	msgStore  MessageStore
	pool      *ants.Pool
}

// New builds a Router. roomStore and msgStore may be nil, in which case the
// corresponding durable writes are skipped; realtime routing never depends
// on them.
func New(reg *registry.Registry, rooms *directory.Directory, tr Transport, roomStore RoomStore, msgStore MessageStore) (*Router, error) {
	pool, err := ants.NewPool(16, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Router{
		registry:  reg,
		rooms:     rooms,
		transport: tr,
		roomStore: roomStore,
		msgStore:  msgStore,
		pool:      pool,
	}, nil
}

// Close releases the persistence worker pool.
func (r *Router) Close() {
	r.pool.Release()
}

// Connect creates the session entry and replies with the assigned handle.
func (r *Router) Connect(sessionID string) {
	r.mu.Lock()
	r.registry.Add(sessionID)
	r.mu.Unlock()

	r.transport.SendTo(sessionID, Event{
		Type:    TypeConnected,
		Payload: ConnectedPayload{SessionID: sessionID},
	})
}

// Disconnect removes every trace of the session: the username binding and
// any room membership. The vacated room gets an updated member list, and
// everyone gets a fresh presence snapshot.
func (r *Router) Disconnect(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, room, ok := r.registry.Unregister(sessionID)
	if !ok || username == "" {
		return
	}

	if room != "" {
		r.rooms.Leave(room, username)
		r.sendToRoom(room, Event{
			Type: TypeUserLeft,
			Payload: RoomEventPayload{
				Room:      room,
				Username:  username,
				Usernames: r.rooms.Members(room),
			},
		})
	}

	r.transport.SendToMany(r.registry.SessionIDs(), Event{
		Type:    TypePresence,
		Payload: PresencePayload{Usernames: r.registry.Usernames()},
	})
	slog.Info("session disconnected", "session", sessionID, "username", username)
}

// Register binds a username to the session. On success every connected
// session receives the updated presence snapshot and the caller gets a
// confirmation; on failure only the caller hears about it.
func (r *Router) Register(sessionID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.registry.Register(sessionID, username); err != nil {
		r.sendError(sessionID, err)
		return err
	}

	r.transport.SendToMany(r.registry.SessionIDs(), Event{
		Type:    TypePresence,
		Payload: PresencePayload{Usernames: r.registry.Usernames()},
	})
	name, _ := r.registry.Username(sessionID)
	r.transport.SendTo(sessionID, Event{
		Type:    TypeRegistered,
		Payload: RegisteredPayload{Username: name},
	})
	slog.Info("user registered", "session", sessionID, "username", name)
	return nil
}

// JoinRoom moves the session into room. The previous room (if any) is
// notified of the departure first, then the new room, joiner included,
// receives the updated member list. Rejoining the current room only
// refreshes the member list.
func (r *Router) JoinRoom(sessionID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.registry.Username(sessionID)
	if !ok {
		r.sendError(sessionID, domain.ErrNotRegistered)
		return domain.ErrNotRegistered
	}

	previous := r.rooms.Join(room, username)
	r.registry.SetRoom(sessionID, room)

	if previous != "" && previous != room {
		r.sendToRoom(previous, Event{
			Type: TypeUserLeft,
			Payload: RoomEventPayload{
				Room:      previous,
				Username:  username,
				Usernames: r.rooms.Members(previous),
			},
		})
	}
	r.sendToRoom(room, Event{
		Type: TypeUserJoined,
		Payload: RoomEventPayload{
			Room:      room,
			Username:  username,
			Usernames: r.rooms.Members(room),
		},
	})

	if r.roomStore != nil {
		r.submit("ensure room", func(ctx context.Context) error {
			return r.roomStore.EnsureRoom(ctx, room)
		})
	}
	slog.Debug("user joined room", "username", username, "room", room, "previous", previous)
	return nil
}

// SendRoomMessage fans a chat message out to everyone currently in room.
// Sending to a room the sender has not joined is allowed on purpose; the
// durable write is best-effort and never delays delivery. Delivery order per
// room equals acceptance order here, under the router mutex.
func (r *Router) SendRoomMessage(sessionID, room, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.registry.Username(sessionID)
	if !ok {
		r.sendError(sessionID, domain.ErrNotRegistered)
		return domain.ErrNotRegistered
	}

	sentAt := time.Now()
	r.sendToRoom(room, Event{
		Type: TypeRoomMessage,
		Payload: RoomMessagePayload{
			Room:   room,
			Sender: sender,
			Text:   text,
			SentAt: sentAt.Format(TimeLayout),
		},
	})

	r.record(domain.Message{
		Sender: sender,
		Room:   room,
		Text:   text,
		Kind:   domain.KindRoom,
		SentAt: sentAt,
	})
	return nil
}

// SendPrivateMessage delivers to the recipient's session if one is
// connected and always echoes back to the sender. An offline recipient is
// not an error; the message is simply dropped.
func (r *Router) SendPrivateMessage(sessionID, recipient, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.registry.Username(sessionID)
	if !ok {
		r.sendError(sessionID, domain.ErrNotRegistered)
		return domain.ErrNotRegistered
	}

	sentAt := time.Now()
	ev := Event{
		Type: TypePrivateMessage,
		Payload: PrivateMessagePayload{
			Sender:    sender,
			Recipient: recipient,
			Text:      text,
			SentAt:    sentAt.Format(TimeLayout),
		},
	}
	if recipientID, online := r.registry.SessionByUsername(recipient); online && recipientID != sessionID {
		r.transport.SendTo(recipientID, ev)
	}
	r.transport.SendTo(sessionID, ev)

	r.record(domain.Message{
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		Kind:      domain.KindPrivate,
		SentAt:    sentAt,
	})
	return nil
}

// ListRoomMembers replies to the caller with the room's current member set.
func (r *Router) ListRoomMembers(sessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transport.SendTo(sessionID, Event{
		Type: TypeRoomMembers,
		Payload: RoomMembersPayload{
			Room:      room,
			Usernames: r.rooms.Members(room),
		},
	})
}

// NotifyRoomCreated broadcasts a room_created event to every connected
// session. Called by the HTTP layer after a successful create.
func (r *Router) NotifyRoomCreated(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transport.SendToMany(r.registry.SessionIDs(), Event{
		Type:    TypeRoomCreated,
		Payload: RoomCreatedPayload{Room: room},
	})
}

// sendToRoom resolves the room's member usernames to live sessions and
// delivers. Must be called with r.mu held so the member snapshot is taken
// after the mutation it reports.
func (r *Router) sendToRoom(room string, ev Event) {
	members := r.rooms.Members(room)
	ids := make([]string, 0, len(members))
	for _, username := range members {
		if id, ok := r.registry.SessionByUsername(username); ok {
			ids = append(ids, id)
		}
	}
	r.transport.SendToMany(ids, ev)
}

func (r *Router) sendError(sessionID string, err error) {
	r.transport.SendTo(sessionID, Event{
		Type: TypeError,
		Payload: ErrorPayload{
			Kind:    domain.ErrorKind(err),
			Message: err.Error(),
		},
	})
}

// record hands the message to the persistence gateway without blocking
// delivery. Store failures are logged and otherwise ignored.
func (r *Router) record(msg domain.Message) {
	if r.msgStore == nil {
		return
	}
	r.submit("record message", func(ctx context.Context) error {
		return r.msgStore.RecordMessage(ctx, msg)
	})
}

func (r *Router) submit(what string, task func(ctx context.Context) error) {
	err := r.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := task(ctx); err != nil {
			slog.Error("router.persist:", "what", what, slog.Any("err", err))
		}
	})
	if err != nil {
		slog.Error("router.persist: pool submit", "what", what, slog.Any("err", err))
	}
}

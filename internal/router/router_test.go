package router_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlane/chat-service/internal/directory"
	"github.com/chatlane/chat-service/internal/domain"
	"github.com/chatlane/chat-service/internal/registry"
	"github.com/chatlane/chat-service/internal/router"
)

// fakeTransport records every delivered event per session.
type fakeTransport struct {
	mu     sync.Mutex
	events map[string][]router.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(map[string][]router.Event)}
}

func (f *fakeTransport) SendTo(sessionID string, ev router.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[sessionID] = append(f.events[sessionID], ev)
}

func (f *fakeTransport) SendToMany(sessionIDs []string, ev router.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range sessionIDs {
		f.events[id] = append(f.events[id], ev)
	}
}

func (f *fakeTransport) ofType(sessionID, eventType string) []router.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []router.Event
	for _, ev := range f.events[sessionID] {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeTransport) lastOfType(t *testing.T, sessionID, eventType string) router.Event {
	t.Helper()
	evs := f.ofType(sessionID, eventType)
	require.NotEmpty(t, evs, "no %s event delivered to %s", eventType, sessionID)
	return evs[len(evs)-1]
}

type fakeStore struct {
	mu       sync.Mutex
	rooms    []string
	messages []domain.Message
	recorded chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{recorded: make(chan struct{}, 64)}
}

func (s *fakeStore) EnsureRoom(_ context.Context, name string) error {
	s.mu.Lock()
	s.rooms = append(s.rooms, name)
	s.mu.Unlock()
	s.recorded <- struct{}{}
	return nil
}

func (s *fakeStore) RecordMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.recorded <- struct{}{}
	return nil
}

func (s *fakeStore) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.recorded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a persistence write")
	}
}

// failingStore rejects every durable write, signalling each attempt.
type failingStore struct {
	attempted chan struct{}
}

func newFailingStore() *failingStore {
	return &failingStore{attempted: make(chan struct{}, 64)}
}

func (s *failingStore) EnsureRoom(context.Context, string) error {
	s.attempted <- struct{}{}
	return errors.New("store unavailable")
}

func (s *failingStore) RecordMessage(context.Context, domain.Message) error {
	s.attempted <- struct{}{}
	return errors.New("store unavailable")
}

func (s *failingStore) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a persistence attempt")
	}
}

func newTestRouter(t *testing.T) (*router.Router, *fakeTransport, *fakeStore) {
	t.Helper()
	tr := newFakeTransport()
	store := newFakeStore()
	r, err := router.New(registry.New(), directory.New(), tr, store, store)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, tr, store
}

// registerAs connects a session and registers it under the given name.
func registerAs(t *testing.T, r *router.Router, sessionID, username string) {
	t.Helper()
	r.Connect(sessionID)
	require.NoError(t, r.Register(sessionID, username))
}

func TestConnectReply(t *testing.T) {
	r, tr, _ := newTestRouter(t)

	r.Connect("s1")

	ev := tr.lastOfType(t, "s1", router.TypeConnected)
	assert.Equal(t, router.ConnectedPayload{SessionID: "s1"}, ev.Payload)
}

func TestRegisterBroadcastsPresence(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	r.Connect("s1")
	r.Connect("s2")

	require.NoError(t, r.Register("s1", "alice"))

	// Everyone, registered or not, gets the snapshot.
	for _, id := range []string{"s1", "s2"} {
		ev := tr.lastOfType(t, id, router.TypePresence)
		assert.ElementsMatch(t, []string{"alice"}, ev.Payload.(router.PresencePayload).Usernames)
	}

	reg := tr.lastOfType(t, "s1", router.TypeRegistered)
	assert.Equal(t, router.RegisteredPayload{Username: "alice"}, reg.Payload)
	assert.Empty(t, tr.ofType("s2", router.TypeRegistered), "confirmation goes to the caller only")
}

func TestRegisterEmptyName(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	r.Connect("s1")

	err := r.Register("s1", "   ")
	require.ErrorIs(t, err, domain.ErrEmptyName)

	ev := tr.lastOfType(t, "s1", router.TypeError)
	assert.Equal(t, domain.KindEmptyName, ev.Payload.(router.ErrorPayload).Kind)
	assert.Empty(t, tr.ofType("s1", router.TypePresence), "failed registration must not broadcast")
}

func TestDuplicateNameThenRetryAfterDisconnect(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	r.Connect("b")

	err := r.Register("b", "alice")
	require.ErrorIs(t, err, domain.ErrNameTaken)
	ev := tr.lastOfType(t, "b", router.TypeError)
	assert.Equal(t, domain.KindNameTaken, ev.Payload.(router.ErrorPayload).Kind)
	// The error goes to the caller only.
	assert.Empty(t, tr.ofType("a", router.TypeError))

	r.Disconnect("a")
	require.NoError(t, r.Register("b", "alice"))
}

func TestJoinRoomNotifiesBothRooms(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	registerAs(t, r, "b", "bob")

	require.NoError(t, r.JoinRoom("a", "General"))
	require.NoError(t, r.JoinRoom("b", "General"))

	ev := tr.lastOfType(t, "a", router.TypeUserJoined)
	p := ev.Payload.(router.RoomEventPayload)
	assert.Equal(t, "General", p.Room)
	assert.Equal(t, "bob", p.Username)
	assert.ElementsMatch(t, []string{"alice", "bob"}, p.Usernames)

	// alice switches rooms: General hears user_left without her, Random
	// hears user_joined with her.
	require.NoError(t, r.JoinRoom("a", "Random"))

	left := tr.lastOfType(t, "b", router.TypeUserLeft).Payload.(router.RoomEventPayload)
	assert.Equal(t, "General", left.Room)
	assert.Equal(t, "alice", left.Username)
	assert.ElementsMatch(t, []string{"bob"}, left.Usernames)

	joined := tr.lastOfType(t, "a", router.TypeUserJoined).Payload.(router.RoomEventPayload)
	assert.Equal(t, "Random", joined.Room)
	assert.ElementsMatch(t, []string{"alice"}, joined.Usernames)
}

func TestJoinRoomIdempotent(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	require.NoError(t, r.JoinRoom("a", "General"))

	require.NoError(t, r.JoinRoom("a", "General"))

	assert.Empty(t, tr.ofType("a", router.TypeUserLeft))
	ev := tr.lastOfType(t, "a", router.TypeUserJoined).Payload.(router.RoomEventPayload)
	assert.ElementsMatch(t, []string{"alice"}, ev.Usernames, "no duplicate membership")
}

func TestJoinRoomRequiresRegistration(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	r.Connect("s1")

	err := r.JoinRoom("s1", "General")
	require.ErrorIs(t, err, domain.ErrNotRegistered)
	ev := tr.lastOfType(t, "s1", router.TypeError)
	assert.Equal(t, domain.KindNotRegistered, ev.Payload.(router.ErrorPayload).Kind)
}

func TestJoinRoomEnsuresDurableRoom(t *testing.T) {
	r, _, store := newTestRouter(t)
	registerAs(t, r, "a", "alice")

	require.NoError(t, r.JoinRoom("a", "General"))

	store.wait(t)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Contains(t, store.rooms, "General")
}

func TestRoomMessageDelivery(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	registerAs(t, r, "b", "bob")
	registerAs(t, r, "c", "carol")
	require.NoError(t, r.JoinRoom("a", "General"))
	require.NoError(t, r.JoinRoom("b", "General"))

	require.NoError(t, r.SendRoomMessage("a", "General", "hi"))

	for _, id := range []string{"a", "b"} {
		ev := tr.lastOfType(t, id, router.TypeRoomMessage)
		p := ev.Payload.(router.RoomMessagePayload)
		assert.Equal(t, "alice", p.Sender)
		assert.Equal(t, "hi", p.Text)
		assert.Equal(t, "General", p.Room)
		assert.NotEmpty(t, p.SentAt)
	}
	assert.Empty(t, tr.ofType("c", router.TypeRoomMessage), "carol never joined General")
}

func TestRoomMessageFromNonMemberIsAllowed(t *testing.T) {
	// Deliberately permissive: membership is not checked on send.
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	registerAs(t, r, "c", "carol")
	require.NoError(t, r.JoinRoom("a", "General"))

	require.NoError(t, r.SendRoomMessage("c", "General", "drive-by"))

	ev := tr.lastOfType(t, "a", router.TypeRoomMessage)
	assert.Equal(t, "carol", ev.Payload.(router.RoomMessagePayload).Sender)
	assert.Empty(t, tr.ofType("c", router.TypeError))
}

func TestRoomMessageRequiresRegistration(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	r.Connect("s1")

	err := r.SendRoomMessage("s1", "General", "hi")
	require.ErrorIs(t, err, domain.ErrNotRegistered)
	ev := tr.lastOfType(t, "s1", router.TypeError)
	assert.Equal(t, domain.KindNotRegistered, ev.Payload.(router.ErrorPayload).Kind)
}

func TestRoomMessageOrdering(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	registerAs(t, r, "b", "bob")
	require.NoError(t, r.JoinRoom("a", "General"))
	require.NoError(t, r.JoinRoom("b", "General"))

	const n = 20
	var wg sync.WaitGroup
	for _, sender := range []string{"a", "b"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for j := 0; j < n; j++ {
				_ = r.SendRoomMessage(sender, "General", fmt.Sprintf("%s-%d", sender, j))
			}
		}(sender)
	}
	wg.Wait()

	// Every member observes the same per-sender order, i.e. acceptance
	// order per room is preserved.
	for _, id := range []string{"a", "b"} {
		seen := map[string]int{}
		for _, ev := range tr.ofType(id, router.TypeRoomMessage) {
			p := ev.Payload.(router.RoomMessagePayload)
			var sender string
			var seq int
			_, err := fmt.Sscanf(p.Text, "%1s-%d", &sender, &seq)
			require.NoError(t, err)
			assert.Equal(t, seen[sender], seq, "out of order delivery to %s", id)
			seen[sender]++
		}
		assert.Equal(t, n, seen["a"])
		assert.Equal(t, n, seen["b"])
	}
}

func TestRoomMessagePersisted(t *testing.T) {
	r, _, store := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	require.NoError(t, r.JoinRoom("a", "General"))
	store.wait(t) // ensure-room write

	require.NoError(t, r.SendRoomMessage("a", "General", "hi"))

	store.wait(t)
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.messages, 1)
	msg := store.messages[0]
	assert.Equal(t, domain.KindRoom, msg.Kind)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "General", msg.Room)
	assert.Empty(t, msg.Recipient)
	assert.False(t, msg.SentAt.IsZero())
}

func TestStoreFailureDoesNotAffectDelivery(t *testing.T) {
	// Persistence is best-effort: a dead store is logged and nothing else.
	tr := newFakeTransport()
	store := newFailingStore()
	r, err := router.New(registry.New(), directory.New(), tr, store, store)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	registerAs(t, r, "a", "alice")
	registerAs(t, r, "b", "bob")
	require.NoError(t, r.JoinRoom("a", "General"))
	require.NoError(t, r.JoinRoom("b", "General"))
	store.wait(t) // ensure-room attempts fail quietly
	store.wait(t)

	require.NoError(t, r.SendRoomMessage("a", "General", "hi"))
	store.wait(t)

	for _, id := range []string{"a", "b"} {
		ev := tr.lastOfType(t, id, router.TypeRoomMessage)
		assert.Equal(t, "hi", ev.Payload.(router.RoomMessagePayload).Text)
	}

	require.NoError(t, r.SendPrivateMessage("a", "bob", "psst"))
	store.wait(t)
	tr.lastOfType(t, "b", router.TypePrivateMessage)

	// No session ever hears about the store.
	for _, id := range []string{"a", "b"} {
		assert.Empty(t, tr.ofType(id, router.TypeError))
	}
}

func TestPrivateMessageDeliveryAndEcho(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	registerAs(t, r, "b", "bob")

	require.NoError(t, r.SendPrivateMessage("a", "bob", "psst"))

	for _, id := range []string{"a", "b"} {
		ev := tr.lastOfType(t, id, router.TypePrivateMessage)
		p := ev.Payload.(router.PrivateMessagePayload)
		assert.Equal(t, "alice", p.Sender)
		assert.Equal(t, "bob", p.Recipient)
		assert.Equal(t, "psst", p.Text)
	}
}

func TestPrivateMessageOfflineRecipient(t *testing.T) {
	r, tr, store := newTestRouter(t)
	registerAs(t, r, "a", "alice")

	require.NoError(t, r.SendPrivateMessage("a", "bob", "anyone there?"))

	// Sender still gets the echo and no error is raised.
	ev := tr.lastOfType(t, "a", router.TypePrivateMessage)
	assert.Equal(t, "bob", ev.Payload.(router.PrivateMessagePayload).Recipient)
	assert.Empty(t, tr.ofType("a", router.TypeError))

	// The message is still handed to the store.
	store.wait(t)
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.messages, 1)
	assert.Equal(t, domain.KindPrivate, store.messages[0].Kind)
}

func TestPrivateMessageToSelf(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")

	require.NoError(t, r.SendPrivateMessage("a", "alice", "note to self"))

	assert.Len(t, tr.ofType("a", router.TypePrivateMessage), 1, "self-send delivers once")
}

func TestDisconnectCleansUpEverything(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	registerAs(t, r, "b", "bob")
	require.NoError(t, r.JoinRoom("a", "General"))
	require.NoError(t, r.JoinRoom("b", "General"))

	r.Disconnect("a")

	left := tr.lastOfType(t, "b", router.TypeUserLeft).Payload.(router.RoomEventPayload)
	assert.Equal(t, "alice", left.Username)
	assert.ElementsMatch(t, []string{"bob"}, left.Usernames)

	presence := tr.lastOfType(t, "b", router.TypePresence).Payload.(router.PresencePayload)
	assert.ElementsMatch(t, []string{"bob"}, presence.Usernames)

	// The name is free again.
	r.Connect("c")
	require.NoError(t, r.Register("c", "alice"))
}

func TestDisconnectUnregisteredSessionIsQuiet(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	r.Connect("ghost")

	r.Disconnect("ghost")

	assert.Empty(t, tr.ofType("a", router.TypeUserLeft))
	assert.Len(t, tr.ofType("a", router.TypePresence), 1, "only the registration broadcast")
}

func TestListRoomMembers(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	registerAs(t, r, "a", "alice")
	require.NoError(t, r.JoinRoom("a", "General"))
	r.Connect("z")

	r.ListRoomMembers("z", "General")
	ev := tr.lastOfType(t, "z", router.TypeRoomMembers).Payload.(router.RoomMembersPayload)
	assert.Equal(t, "General", ev.Room)
	assert.ElementsMatch(t, []string{"alice"}, ev.Usernames)

	r.ListRoomMembers("z", "nowhere")
	ev = tr.lastOfType(t, "z", router.TypeRoomMembers).Payload.(router.RoomMembersPayload)
	assert.Empty(t, ev.Usernames)
}

func TestNotifyRoomCreated(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	r.Connect("a")
	r.Connect("b")

	r.NotifyRoomCreated("Random")

	for _, id := range []string{"a", "b"} {
		ev := tr.lastOfType(t, id, router.TypeRoomCreated)
		assert.Equal(t, router.RoomCreatedPayload{Room: "Random"}, ev.Payload)
	}
}

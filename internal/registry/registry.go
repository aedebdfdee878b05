// Package registry tracks connected sessions and the username each one
// claims. It is the single authority for name uniqueness: the check-and-set
// in Register happens under one lock, so two concurrent registrations can
// never both win the same name.
package registry

import (
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/chatlane/chat-service/internal/domain"
)

type session struct {
	username string
	room     string
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session // session id -> record
	byName   map[string]string   // username -> session id
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		byName:   make(map[string]string),
	}
}

// Add creates an entry for a freshly connected session. Username and room
// stay unset until Register / SetRoom.
func (r *Registry) Add(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		r.sessions[sessionID] = &session{}
	}
}

// Register binds a username to the session. The name check is exact and
// case-sensitive, no normalization beyond trimming whitespace.
func (r *Registry) Register(sessionID, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrNotRegistered
	}
	if s.username != "" {
		return domain.ErrAlreadyRegistered
	}
	if _, taken := r.byName[username]; taken {
		return domain.ErrNameTaken
	}

	s.username = username
	r.byName[username] = sessionID
	return nil
}

// Unregister removes the session entirely and reports the username and room
// it held so the caller can clean up room membership.
func (r *Registry) Unregister(sessionID string) (username, room string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, found := r.sessions[sessionID]
	if !found {
		return "", "", false
	}
	delete(r.sessions, sessionID)
	if s.username != "" {
		delete(r.byName, s.username)
	}
	return s.username, s.room, true
}

func (r *Registry) Username(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.username == "" {
		return "", false
	}
	return s.username, true
}

// SessionByUsername resolves a username to its live session, used for
// private-message routing. Uniqueness guarantees at most one match.
func (r *Registry) SessionByUsername(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[username]
	return id, ok
}

func (r *Registry) Room(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.room == "" {
		return "", false
	}
	return s.room, true
}

func (r *Registry) SetRoom(sessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.room = room
	}
}

// Usernames returns a snapshot of all registered names for presence
// broadcasts. The byName index cannot hold duplicates, so the snapshot is a
// set by construction.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.byName)
}

// SessionIDs returns every connected session, registered or not.
func (r *Registry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.sessions)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

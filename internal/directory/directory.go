// Package directory owns room membership: which usernames are in which
// room. Membership is keyed by username, not session id; the registry is
// consulted separately to resolve names back to live sessions for delivery.
package directory

import (
	"sync"

	"github.com/samber/lo"
)

type Directory struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // room name -> member usernames
}

func New() *Directory {
	return &Directory{rooms: make(map[string]map[string]struct{})}
}

// Join moves username into room and returns the room it previously occupied,
// if any. Leaving the old room and entering the new one happen under one
// lock, so no reader ever observes the name in two rooms or in none.
// Joining the current room is a no-op returning that same room.
func (d *Directory) Join(room, username string) (previous string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, members := range d.rooms {
		if _, ok := members[username]; ok {
			if name == room {
				return name
			}
			previous = name
			delete(members, username)
			break
		}
	}

	rs, ok := d.rooms[room]
	if !ok {
		rs = make(map[string]struct{})
		d.rooms[room] = rs
	}
	rs[username] = struct{}{}
	return previous
}

// Leave removes username from room if present. The room entry is kept even
// when it becomes empty: room existence is defined by the durable store, not
// by occupancy.
func (d *Directory) Leave(room, username string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if members, ok := d.rooms[room]; ok {
		delete(members, username)
	}
}

// Members returns the member set of room. Unknown rooms yield an empty
// slice, never an error.
func (d *Directory) Members(room string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members, ok := d.rooms[room]
	if !ok {
		return []string{}
	}
	return lo.Keys(members)
}

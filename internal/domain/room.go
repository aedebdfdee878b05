package domain

import "time"

// DefaultRoom is created at startup so clients always have somewhere to land.
const DefaultRoom = "General"

type Room struct {
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

package domain

import "time"

type MessageKind string

const (
	KindRoom    MessageKind = "room"
	KindPrivate MessageKind = "private"
)

type Message struct {
	Sender    string      `db:"sender"`
	Room      string      `db:"room"`      // room kind only
	Recipient string      `db:"recipient"` // private kind only
	Text      string      `db:"text"`
	Kind      MessageKind `db:"kind"`
	SentAt    time.Time   `db:"sent_at"`
}

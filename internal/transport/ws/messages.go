package ws

import "encoding/json"

// Inbound event types clients may send.
const (
	TypeRegister       = "register"
	TypeJoinRoom       = "join_room"
	TypeRoomMessage    = "room_message"
	TypePrivateMessage = "private_message"
	TypeRoomMembers    = "room_members"
)

// Inbound is the envelope for client events. Payload stays raw until the
// type is known.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RegisterPayload struct {
	Username string `json:"username"`
}

type JoinRoomPayload struct {
	Room string `json:"room"`
}

type RoomMessagePayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

type PrivateMessagePayload struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type RoomMembersPayload struct {
	Room string `json:"room"`
}

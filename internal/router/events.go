package router

// Outbound event types delivered over the transport.
const (
	TypeConnected      = "connected"       // connect reply with the assigned session id
	TypeRegistered     = "registered"      // registration confirmed (caller only)
	TypePresence       = "presence"        // global username snapshot
	TypeUserJoined     = "user_joined"     // member entered a room
	TypeUserLeft       = "user_left"       // member left a room
	TypeRoomMessage    = "room_message"    // chat message to a room
	TypePrivateMessage = "private_message" // point-to-point message (and sender echo)
	TypeRoomMembers    = "room_members"    // member list reply (caller only)
	TypeRoomCreated    = "room_created"    // a new room was created
	TypeError          = "error"           // precondition failure (caller only)
)

// TimeLayout is the timestamp format carried in message payloads.
const TimeLayout = "2006-01-02 15:04:05"

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type ConnectedPayload struct {
	SessionID string `json:"session_id"`
}

type RegisteredPayload struct {
	Username string `json:"username"`
}

type PresencePayload struct {
	Usernames []string `json:"usernames"`
}

// RoomEventPayload is shared by user_joined and user_left: the affected user
// plus the room's member list after the change.
type RoomEventPayload struct {
	Room      string   `json:"room"`
	Username  string   `json:"username"`
	Usernames []string `json:"usernames"`
}

type RoomMessagePayload struct {
	Room   string `json:"room"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

type PrivateMessagePayload struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	SentAt    string `json:"sent_at"`
}

type RoomMembersPayload struct {
	Room      string   `json:"room"`
	Usernames []string `json:"usernames"`
}

type RoomCreatedPayload struct {
	Room string `json:"room"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

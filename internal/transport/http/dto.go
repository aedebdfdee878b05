package http

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type RoomItem struct {
	Name string `json:"name"`
}

type RoomsListResponse struct {
	Rooms []string `json:"rooms"`
}

type HistoryMessageItem struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

type HistoryResponse struct {
	Room     string               `json:"room"`
	Messages []HistoryMessageItem `json:"messages"`
}

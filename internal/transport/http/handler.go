package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chatlane/chat-service/internal/domain"
	"github.com/chatlane/chat-service/internal/router"
)

type RoomSvc interface {
	CreateRoom(ctx context.Context, name string) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]string, error)
}

type ChatSvc interface {
	History(ctx context.Context, room string, limit int) ([]domain.Message, error)
}

// Notifier pushes realtime notifications triggered by REST calls.
type Notifier interface {
	NotifyRoomCreated(room string)
}

type Handler struct {
	roomSvc  RoomSvc
	chatSvc  ChatSvc
	notifier Notifier
}

func NewHandler(room RoomSvc, chat ChatSvc, notifier Notifier) *Handler {
	return &Handler{
		roomSvc:  room,
		chatSvc:  chat,
		notifier: notifier,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.roomSvc.ListRooms(r.Context())
	if err != nil {
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to list rooms"})
		return
	}
	if rooms == nil {
		rooms = []string{}
	}

	writeJSON(w, http.StatusOK, RoomsListResponse{Rooms: rooms})
}

// POST /api/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyRoomName):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "room name required"})
		case errors.Is(err, domain.ErrRoomExists):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "room already exists"})
		default:
			slog.Error("handler.CreateRoom:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to create room"})
		}
		return
	}

	// Connected clients learn about the new room right away.
	h.notifier.NotifyRoomCreated(room.Name)

	writeJSON(w, http.StatusCreated, RoomItem{Name: room.Name})
}

// GET /api/rooms/{room}/history?limit=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	msgs, err := h.chatSvc.History(r.Context(), room, limit)
	if err != nil {
		slog.Error("handler.GetHistory:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load history"})
		return
	}

	resp := HistoryResponse{Room: room, Messages: make([]HistoryMessageItem, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, HistoryMessageItem{
			Sender: m.Sender,
			Text:   m.Text,
			SentAt: m.SentAt.Format(router.TimeLayout),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

package service

import (
	"context"

	"github.com/chatlane/chat-service/internal/domain"
	"github.com/chatlane/chat-service/internal/postgres"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type ChatService struct {
	msgRepo *postgres.MessageRepository
}

func NewChatService(msgRepo *postgres.MessageRepository) *ChatService {
	return &ChatService{msgRepo: msgRepo}
}

// RecordMessage writes one message to durable history. Callers treat this
// as fire-and-forget; a failure here never affects realtime delivery.
func (s *ChatService) RecordMessage(ctx context.Context, msg domain.Message) error {
	return s.msgRepo.Save(ctx, msg)
}

// History returns a room's messages ascending by time, capped so one
// request cannot drag the whole table over the wire.
func (s *ChatService) History(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.msgRepo.History(ctx, room, limit)
}

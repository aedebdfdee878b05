package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatlane/chat-service/internal/domain"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Save(ctx context.Context, msg domain.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (sender, room, recipient, text, kind, sent_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6)`,
		msg.Sender, msg.Room, msg.Recipient, msg.Text, msg.Kind, msg.SentAt)
	return err
}

// History returns room-kind messages for a room, oldest first, capped at
// limit.
func (r *MessageRepository) History(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sender, COALESCE(room, ''), text, kind, sent_at
		FROM messages
		WHERE room = $1 AND kind = $2
		ORDER BY sent_at ASC
		LIMIT $3`, room, domain.KindRoom, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Sender, &m.Room, &m.Text, &m.Kind, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatlane/chat-service/internal/domain"
)

const uniqueViolation = "23505"

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, name string) (*domain.Room, error) {
	query := `
		INSERT INTO rooms (name)
		VALUES ($1)
		RETURNING name, created_at`

	var rm domain.Room
	err := r.db.QueryRow(ctx, query, name).Scan(&rm.Name, &rm.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrRoomExists
		}
		return nil, err
	}
	return &rm, nil
}

// Ensure creates the room if it is missing; an existing room is not an
// error.
func (r *RoomRepository) Ensure(ctx context.Context, name string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rooms (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING`, name)
	return err
}

func (r *RoomRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name FROM rooms ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

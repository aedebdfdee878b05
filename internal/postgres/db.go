package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

// New builds a pgx pool and pings it with exponential backoff, so the
// service survives a database that comes up a few seconds after it does.
func New(ctx context.Context, dsn string) (*DB, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// Init creates the schema when it does not exist yet.
func (db *DB) Init(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS rooms (
			id         BIGSERIAL PRIMARY KEY,
			name       VARCHAR(100) UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS messages (
			id        BIGSERIAL PRIMARY KEY,
			sender    VARCHAR(100) NOT NULL,
			room      VARCHAR(100),
			recipient VARCHAR(100),
			text      TEXT NOT NULL,
			kind      VARCHAR(20) NOT NULL DEFAULT 'room',
			sent_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS messages_room_sent_at_idx
			ON messages (room, sent_at);`

	_, err := db.Pool.Exec(ctx, schema)
	return err
}

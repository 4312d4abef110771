package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Store wraps the Postgres pool behind the repositories the dashboard and bot
// need: teacher accounts, quiz images, pending login codes and the grading log.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	log.Info().Msg("db connected")
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// InitSchema creates the tables if they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS teachers (
		id          BIGSERIAL PRIMARY KEY,
		phone       TEXT UNIQUE NOT NULL,
		telegram_id BIGINT UNIQUE,
		first_name  TEXT,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login  TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS quizzes (
		id         BIGSERIAL PRIMARY KEY,
		teacher_id BIGINT NOT NULL REFERENCES teachers(id),
		image_path TEXT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS pending_auth (
		phone      TEXT PRIMARY KEY,
		code_hash  TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS grading_log (
		id           BIGSERIAL PRIMARY KEY,
		teacher_id   BIGINT REFERENCES teachers(id),
		student_id   BIGINT,
		student_name TEXT,
		score        DOUBLE PRECISION,
		max_score    DOUBLE PRECISION,
		graded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

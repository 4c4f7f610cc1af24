package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool creates a new PostgreSQL connection pool
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// Migrate creates the chat tables if they do not exist. Foreign keys cascade
// as a backstop, but deletes are always issued as explicit ordered
// transactions so the invariants hold on any storage engine.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id                TEXT PRIMARY KEY,
			created_at        TIMESTAMPTZ NOT NULL,
			is_empty          BOOLEAN NOT NULL DEFAULT TRUE,
			is_blocked        BOOLEAN NOT NULL DEFAULT FALSE,
			listing_id        BIGINT NOT NULL DEFAULT 0,
			listing_title     TEXT NOT NULL DEFAULT '',
			listing_price     BIGINT NOT NULL DEFAULT 0,
			listing_thumbnail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			id              BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         TEXT NOT NULL,
			is_blocked      BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (conversation_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT NOT NULL,
			variant         TEXT NOT NULL,
			content         TEXT NOT NULL,
			media_key       TEXT NOT NULL DEFAULT '',
			sent_at         TIMESTAMPTZ NOT NULL,
			seen            BOOLEAN NOT NULL DEFAULT FALSE,
			seen_at         TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_sent
			ON messages (conversation_id, sent_at, id)`,
		`CREATE TABLE IF NOT EXISTS message_deletions (
			id         BIGSERIAL PRIMARY KEY,
			message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			UNIQUE (message_id, user_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

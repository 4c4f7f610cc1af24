package dao

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MarkerPostgres implements per-viewer deletion markers for PostgreSQL.
type MarkerPostgres struct {
	pool *pgxpool.Pool
}

// NewMarkerPostgres creates a new PostgreSQL deletion marker repository.
func NewMarkerPostgres(pool *pgxpool.Pool) *MarkerPostgres {
	return &MarkerPostgres{pool: pool}
}

// Add records that the user has hidden the message from their own view.
// Idempotent: re-adding the same (message, user) pair is a no-op.
func (r *MarkerPostgres) Add(ctx context.Context, messageID int64, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_deletions (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, userID)
	if err != nil {
		return fmt.Errorf("inserting deletion marker: %w", err)
	}
	return nil
}

// AddAllForConversation inserts markers for every message in the conversation
// the user has not already hidden, in one statement. Returns the number of
// markers created.
func (r *MarkerPostgres) AddAllForConversation(ctx context.Context, conversationID, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO message_deletions (message_id, user_id)
		SELECT m.id, $2 FROM messages m
		WHERE m.conversation_id = $1
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("inserting conversation markers: %w", err)
	}
	return tag.RowsAffected(), nil
}

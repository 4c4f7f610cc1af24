package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// MessagePostgres implements message storage for PostgreSQL.
type MessagePostgres struct {
	pool *pgxpool.Pool
}

// NewMessagePostgres creates a new PostgreSQL message repository.
func NewMessagePostgres(pool *pgxpool.Pool) *MessagePostgres {
	return &MessagePostgres{pool: pool}
}

// Insert persists a new message and fills in its id. Ids come from a single
// sequence, so readers of one conversation observe messages in commit order.
func (r *MessagePostgres) Insert(ctx context.Context, msg *entity.Message) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, variant, content, media_key, sent_at, seen)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id
	`, msg.ConversationID, msg.SenderID, msg.Variant.String(), msg.Content, msg.MediaKey, msg.SentAt).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// GetByID retrieves a message. Returns entity.ErrMessageNotFound when no row
// exists.
func (r *MessagePostgres) GetByID(ctx context.Context, id int64) (*entity.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, variant, content, media_key, sent_at, seen, seen_at
		FROM messages
		WHERE id = $1
	`, id)

	msg, err := scanMessage(row)
	if err == pgx.ErrNoRows {
		return nil, entity.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	return msg, nil
}

// ListByConversation returns the conversation history visible to the viewer,
// in send order. Messages the viewer has hidden with a deletion marker are
// excluded.
func (r *MessagePostgres) ListByConversation(ctx context.Context, conversationID, viewerID string) ([]entity.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.variant, m.content, m.media_key,
		       m.sent_at, m.seen, m.seen_at
		FROM messages m
		WHERE m.conversation_id = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM message_deletions d
		      WHERE d.message_id = m.id AND d.user_id = $2
		  )
		ORDER BY m.sent_at, m.id
	`, conversationID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []entity.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// MarkSeen flags every unseen message in the conversation that was not sent
// by the viewer, in one batch. It returns the highest message id marked and
// how many rows changed; count 0 means there was nothing to mark.
func (r *MessagePostgres) MarkSeen(ctx context.Context, conversationID, viewerID string, at time.Time) (lastSeenID int64, count int, err error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE messages
		SET seen = TRUE, seen_at = $3
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT seen
		RETURNING id
	`, conversationID, viewerID, at)
	if err != nil {
		return 0, 0, fmt.Errorf("marking messages seen: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, 0, fmt.Errorf("scanning marked id: %w", err)
		}
		if id > lastSeenID {
			lastSeenID = id
		}
		count++
	}
	return lastSeenID, count, rows.Err()
}

// Delete removes a message row and its deletion markers.
func (r *MessagePostgres) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM message_deletions WHERE message_id = $1`, id); err != nil {
		return fmt.Errorf("deleting markers: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return tx.Commit(ctx)
}

// UnreadCount counts messages addressed to the user that are unseen and not
// hidden by one of the user's own deletion markers.
func (r *MessagePostgres) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN participants p ON p.conversation_id = m.conversation_id AND p.user_id = $1
		WHERE m.sender_id <> $1
		  AND NOT m.seen
		  AND NOT EXISTS (
		      SELECT 1 FROM message_deletions d
		      WHERE d.message_id = m.id AND d.user_id = $1
		  )
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}

func scanMessage(row pgx.Row) (*entity.Message, error) {
	var (
		msg     entity.Message
		variant string
		seenAt  *time.Time
	)
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&variant,
		&msg.Content,
		&msg.MediaKey,
		&msg.SentAt,
		&msg.Seen,
		&seenAt,
	)
	if err != nil {
		return nil, err
	}

	v, err := entity.ParseVariant(variant)
	if err != nil {
		return nil, err
	}
	msg.Variant = v
	msg.SeenAt = seenAt
	return &msg, nil
}

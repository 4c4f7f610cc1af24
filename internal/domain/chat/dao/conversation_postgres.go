package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// ConversationPostgres implements conversation storage for PostgreSQL.
type ConversationPostgres struct {
	pool *pgxpool.Pool
}

// NewConversationPostgres creates a new PostgreSQL conversation repository.
func NewConversationPostgres(pool *pgxpool.Pool) *ConversationPostgres {
	return &ConversationPostgres{pool: pool}
}

// GetOrCreate inserts the conversation and its two participant rows in one
// transaction, converging on the existing row when another caller got there
// first. The unique primary key on the canonical id makes concurrent
// first-contact race-free: the loser's INSERT is a no-op and both callers
// read back the same row.
func (r *ConversationPostgres) GetOrCreate(ctx context.Context, conv *entity.Conversation, participantIDs [2]string) (*entity.Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO conversations (
			id, created_at, is_empty, is_blocked,
			listing_id, listing_title, listing_price, listing_thumbnail
		) VALUES ($1, $2, TRUE, FALSE, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, conv.ID, conv.CreatedAt, conv.ListingID, conv.ListingTitle, conv.ListingPrice, conv.ListingThumbnail)
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	if tag.RowsAffected() > 0 {
		for _, userID := range participantIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO participants (conversation_id, user_id, is_blocked)
				VALUES ($1, $2, FALSE)
				ON CONFLICT (conversation_id, user_id) DO NOTHING
			`, conv.ID, userID); err != nil {
				return nil, fmt.Errorf("inserting participant: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing conversation: %w", err)
	}

	return r.GetByID(ctx, conv.ID)
}

// GetByID retrieves a conversation. Returns entity.ErrConversationNotFound
// when no row exists.
func (r *ConversationPostgres) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, created_at, is_empty, is_blocked,
		       listing_id, listing_title, listing_price, listing_thumbnail
		FROM conversations
		WHERE id = $1
	`, id)

	var conv entity.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.CreatedAt,
		&conv.IsEmpty,
		&conv.IsBlocked,
		&conv.ListingID,
		&conv.ListingTitle,
		&conv.ListingPrice,
		&conv.ListingThumbnail,
	)
	if err == pgx.ErrNoRows {
		return nil, entity.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &conv, nil
}

// MarkActive flips is_empty to false. No-op if the conversation is already
// active.
func (r *ConversationPostgres) MarkActive(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET is_empty = FALSE WHERE id = $1 AND is_empty
	`, id)
	if err != nil {
		return fmt.Errorf("marking conversation active: %w", err)
	}
	return nil
}

// SetBlocked updates the conversation block flag.
func (r *ConversationPostgres) SetBlocked(ctx context.Context, id string, blocked bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET is_blocked = $2 WHERE id = $1
	`, id, blocked)
	if err != nil {
		return fmt.Errorf("setting conversation blocked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrConversationNotFound
	}
	return nil
}

// IsParticipant reports whether the user belongs to the conversation.
func (r *ConversationPostgres) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM participants WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking participant: %w", err)
	}
	return ok, nil
}

// Participants returns the membership rows of a conversation.
func (r *ConversationPostgres) Participants(ctx context.Context, conversationID string) ([]entity.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id, user_id, is_blocked
		FROM participants
		WHERE conversation_id = $1
		ORDER BY user_id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	var participants []entity.Participant
	for rows.Next() {
		var p entity.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.IsBlocked); err != nil {
			return nil, fmt.Errorf("scanning participant row: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ListByUser returns conversation previews for a user's chat list. The last
// message preview respects the viewer's deletion markers and has_unread
// counts only messages from the other party that the viewer has not seen.
func (r *ConversationPostgres) ListByUser(ctx context.Context, userID string) ([]entity.ConversationPreview, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.created_at, c.is_empty, c.is_blocked,
		       c.listing_id, c.listing_title, c.listing_price, c.listing_thumbnail,
		       other.user_id AS other_user_id,
		       COALESCE((
		           SELECT m.content FROM messages m
		           WHERE m.conversation_id = c.id
		             AND NOT EXISTS (
		                 SELECT 1 FROM message_deletions d
		                 WHERE d.message_id = m.id AND d.user_id = $1
		             )
		           ORDER BY m.sent_at DESC, m.id DESC
		           LIMIT 1
		       ), '') AS last_message,
		       EXISTS (
		           SELECT 1 FROM messages m
		           WHERE m.conversation_id = c.id
		             AND m.sender_id <> $1
		             AND NOT m.seen
		             AND NOT EXISTS (
		                 SELECT 1 FROM message_deletions d
		                 WHERE d.message_id = m.id AND d.user_id = $1
		             )
		       ) AS has_unread
		FROM conversations c
		JOIN participants me ON me.conversation_id = c.id AND me.user_id = $1
		JOIN participants other ON other.conversation_id = c.id AND other.user_id <> $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var previews []entity.ConversationPreview
	for rows.Next() {
		var p entity.ConversationPreview
		err := rows.Scan(
			&p.ID,
			&p.CreatedAt,
			&p.IsEmpty,
			&p.IsBlocked,
			&p.ListingID,
			&p.ListingTitle,
			&p.ListingPrice,
			&p.ListingThumbnail,
			&p.OtherUserID,
			&p.LastMessagePreview,
			&p.HasUnread,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		previews = append(previews, p)
	}
	return previews, rows.Err()
}

// FindStaleEmpty returns ids of conversations that are still empty and were
// created before the cutoff. Used by the janitor scan phase.
func (r *ConversationPostgres) FindStaleEmpty(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM conversations
		WHERE is_empty AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying stale conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteIfEmpty removes a conversation and its dependents in one ordered
// transaction: markers, then messages, then participants, then the
// conversation row itself. is_empty is re-checked inside the transaction
// under FOR UPDATE, so a first message committed between the janitor's scan
// and this call keeps the conversation alive. Returns false when the row is
// gone already or no longer empty.
func (r *ConversationPostgres) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var isEmpty bool
	err = tx.QueryRow(ctx, `
		SELECT is_empty FROM conversations WHERE id = $1 FOR UPDATE
	`, id).Scan(&isEmpty)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rechecking conversation: %w", err)
	}
	if !isEmpty {
		return false, nil
	}

	steps := []string{
		`DELETE FROM message_deletions d USING messages m
		 WHERE d.message_id = m.id AND m.conversation_id = $1`,
		`DELETE FROM messages WHERE conversation_id = $1`,
		`DELETE FROM participants WHERE conversation_id = $1`,
		`DELETE FROM conversations WHERE id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return false, fmt.Errorf("deleting conversation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}
	return true, nil
}

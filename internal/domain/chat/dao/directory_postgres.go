package dao

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// UserDirectoryPostgres resolves display names from the marketplace users
// table. The chat engine never writes to it; identity is owned elsewhere.
type UserDirectoryPostgres struct {
	pool *pgxpool.Pool
}

// NewUserDirectoryPostgres creates a read-only user directory adapter.
func NewUserDirectoryPostgres(pool *pgxpool.Pool) *UserDirectoryPostgres {
	return &UserDirectoryPostgres{pool: pool}
}

// GetDisplayName returns the user's full name, or an empty string when the
// user is unknown.
func (r *UserDirectoryPostgres) GetDisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `
		SELECT full_name FROM users WHERE id = $1
	`, userID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up display name: %w", err)
	}
	return name, nil
}

// ListingCatalogPostgres reads listing summaries from the marketplace
// listings tables. Consulted once at conversation creation; the summary is
// cached on the conversation row afterwards.
type ListingCatalogPostgres struct {
	pool *pgxpool.Pool
}

// NewListingCatalogPostgres creates a read-only listing catalog adapter.
func NewListingCatalogPostgres(pool *pgxpool.Pool) *ListingCatalogPostgres {
	return &ListingCatalogPostgres{pool: pool}
}

// GetSummary returns the listing's title, price and first image. A missing
// listing is reported as (nil, nil) so callers decide whether it is fatal.
func (r *ListingCatalogPostgres) GetSummary(ctx context.Context, listingID int64) (*entity.ListingSummary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT l.id, l.title, l.price,
		       COALESCE((
		           SELECT i.url FROM listing_images i
		           WHERE i.listing_id = l.id
		           ORDER BY i.position
		           LIMIT 1
		       ), '')
		FROM listings l
		WHERE l.id = $1
	`, listingID)

	var s entity.ListingSummary
	err := row.Scan(&s.ID, &s.Title, &s.Price, &s.ThumbnailURL)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up listing: %w", err)
	}
	return &s, nil
}

package entity

import (
	"fmt"
	"strings"
	"time"
)

// Conversation is a persistent thread between exactly two users, optionally
// anchored to a marketplace listing. The listing summary is denormalized onto
// the row at creation time so list views never touch the catalog again.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	IsEmpty   bool      `json:"is_empty"`
	IsBlocked bool      `json:"is_blocked"`

	ListingID        int64  `json:"listing_id,omitempty"`
	ListingTitle     string `json:"listing_title,omitempty"`
	ListingPrice     int64  `json:"listing_price,omitempty"`
	ListingThumbnail string `json:"listing_thumbnail,omitempty"`
}

// Participant is a user's membership record in a conversation.
type Participant struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsBlocked      bool   `json:"is_blocked"`
}

// ListingSummary is the cached subset of a listing shown in chat list views.
type ListingSummary struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Price        int64  `json:"price"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ConversationID derives the canonical conversation identifier for a pair of
// users and an optional listing. The participant ids are sorted first, so the
// result is independent of argument order and GetOrCreate converges on one
// row for the same logical parties.
func ConversationID(userA, userB string, listingID int64) string {
	lo, hi := userA, userB
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	if listingID > 0 {
		return fmt.Sprintf("%s-%s-%d", lo, hi, listingID)
	}
	return fmt.Sprintf("%s-%s", lo, hi)
}

// ConversationPreview is one row of a user's conversation list: the thread
// plus everything the list view needs about the other party and the tail of
// the exchange.
type ConversationPreview struct {
	Conversation
	OtherUserID        string `json:"other_user_id"`
	OtherUserName      string `json:"other_user_name,omitempty"`
	LastMessagePreview string `json:"last_message_preview,omitempty"`
	HasUnread          bool   `json:"has_unread"`
}

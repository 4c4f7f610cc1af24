package service

import (
	"context"
	"fmt"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// StartConversationInput identifies the two parties and the listing the
// conversation is anchored to. Listing 0 means no listing.
type StartConversationInput struct {
	User1ID   string
	User2ID   string
	ListingID int64
}

// StartConversation returns the conversation between the two users for the
// listing, creating it in the Empty state if it does not exist yet. The id is
// canonical and order-independent, so concurrent first-contact from either
// side converges on one row.
func (s *Service) StartConversation(ctx context.Context, in StartConversationInput) (*entity.Conversation, error) {
	if in.User1ID == "" || in.User2ID == "" {
		return nil, entity.ErrNotAParticipant
	}

	id := entity.ConversationID(in.User1ID, in.User2ID, in.ListingID)

	conv := &entity.Conversation{
		ID:        id,
		CreatedAt: s.now().UTC(),
		IsEmpty:   true,
		ListingID: in.ListingID,
	}

	if in.ListingID > 0 {
		summary, err := s.listings.GetSummary(ctx, in.ListingID)
		if err != nil {
			return nil, fmt.Errorf("looking up listing %d: %w", in.ListingID, err)
		}
		if summary != nil {
			conv.ListingTitle = summary.Title
			conv.ListingPrice = summary.Price
			conv.ListingThumbnail = summary.ThumbnailURL
		}
	}

	return s.convs.GetOrCreate(ctx, conv, [2]string{in.User1ID, in.User2ID})
}

// GetConversation returns a conversation by id.
func (s *Service) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	return s.convs.GetByID(ctx, id)
}

// SetBlocked updates the conversation's block flag. Blocking and emptiness
// are orthogonal: a blocked conversation keeps its history.
func (s *Service) SetBlocked(ctx context.Context, conversationID string, blocked bool) error {
	return s.convs.SetBlocked(ctx, conversationID, blocked)
}

// ListConversations returns the user's conversation previews with the other
// party's display name resolved.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]entity.ConversationPreview, error) {
	previews, err := s.convs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range previews {
		previews[i].OtherUserName = s.displayName(ctx, previews[i].OtherUserID)
	}
	return previews, nil
}

// History returns the conversation's messages as visible to the viewer, in
// send order. Messages hidden by the viewer's own deletion markers are
// excluded; every other participant still sees them.
func (s *Service) History(ctx context.Context, conversationID, viewerID string) ([]entity.Message, error) {
	return s.msgs.ListByConversation(ctx, conversationID, viewerID)
}

// UnreadCount returns the number of unseen messages addressed to the user
// across all their conversations, net of delete-for-me markers.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.msgs.UnreadCount(ctx, userID)
}

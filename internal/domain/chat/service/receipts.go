package service

import (
	"context"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// MarkSeen marks every message in the conversation not sent by the viewer
// and not yet seen, in one batch. When anything was marked it publishes a
// MessagesSeen event to the conversation group (so the sender's UI can show
// the read marker) and an UnreadStateCleared event to the viewer's personal
// group. When nothing was unseen it is a strict no-op: no write, no events.
func (s *Service) MarkSeen(ctx context.Context, conversationID, viewerID string) error {
	lastSeenID, count, err := s.msgs.MarkSeen(ctx, conversationID, viewerID, s.now().UTC())
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	s.events.PublishToConversation(conversationID, entity.EventMessagesSeen, entity.MessagesSeenEvent{
		ConversationID:    conversationID,
		LastSeenMessageID: lastSeenID,
		ViewerID:          viewerID,
	})
	s.events.PublishToUser(viewerID, entity.EventUnreadStateCleared, entity.UnreadStateClearedEvent{
		ConversationID: conversationID,
	})
	return nil
}

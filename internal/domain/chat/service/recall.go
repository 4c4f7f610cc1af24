package service

import (
	"context"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// RecallText retracts a text message for all participants.
func (s *Service) RecallText(ctx context.Context, messageID int64, requesterID string) error {
	return s.recall(ctx, messageID, requesterID, false)
}

// RecallMedia retracts an image or video message for all participants,
// best-effort deleting the remote asset first.
func (s *Service) RecallMedia(ctx context.Context, messageID int64, requesterID string) error {
	return s.recall(ctx, messageID, requesterID, true)
}

// recall enforces the retraction policy: only the sender, only within the
// recall window, and only through the method matching the message variant.
// Remote asset deletion is best-effort; a media-store failure is logged and
// the recall proceeds. The row deletion and the broadcast always follow.
func (s *Service) recall(ctx context.Context, messageID int64, requesterID string, wantMedia bool) error {
	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return entity.ErrForbidden
	}
	if s.now().Sub(msg.SentAt) > s.recallWindow {
		return entity.ErrRecallWindowExpired
	}
	if msg.Variant.IsMedia() != wantMedia {
		return entity.ErrWrongVariant
	}

	if msg.Variant.IsMedia() && msg.MediaKey != "" {
		// The asset may still live under the temporary upload prefix if it
		// was never promoted; both locations are cleaned the same way, the
		// branch only affects what we log.
		temporary := s.media.IsTemporary(msg.MediaKey)
		if err := s.media.DeleteAsset(ctx, msg.MediaKey, msg.Variant); err != nil {
			s.logger.Warn("deleting recalled media asset",
				"message_id", msg.ID,
				"media_key", msg.MediaKey,
				"temporary", temporary,
				"error", err,
			)
		}
	}

	if err := s.msgs.Delete(ctx, messageID); err != nil {
		return err
	}

	s.events.PublishToConversation(msg.ConversationID, entity.EventMessageRecalled, entity.MessageRecalledEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		RecalledBy:     requesterID,
		Variant:        msg.Variant.String(),
	})
	return nil
}

// DeleteForMe hides a single message from the viewer's own history.
// Idempotent: hiding an already hidden message succeeds with no change.
func (s *Service) DeleteForMe(ctx context.Context, messageID int64, viewerID string) error {
	if _, err := s.msgs.GetByID(ctx, messageID); err != nil {
		return err
	}
	return s.markers.Add(ctx, messageID, viewerID)
}

// DeleteConversationForMe hides every message of the conversation from the
// viewer in one batch. Messages already hidden are skipped.
func (s *Service) DeleteConversationForMe(ctx context.Context, conversationID, viewerID string) error {
	if _, err := s.convs.GetByID(ctx, conversationID); err != nil {
		return err
	}
	_, err := s.markers.AddAllForConversation(ctx, conversationID, viewerID)
	return err
}

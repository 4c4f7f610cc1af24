package service

import (
	"context"
	"fmt"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// SendMessageInput carries one outgoing message.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Variant        entity.Variant
	Content        string
	MediaKey       string // object-store key, media variants only
}

// SendMessage validates, persists and fans out a message.
//
// Validation precedes any write: blank text content, non-participant senders
// and blocked conversations are rejected with no partial state. On success
// the message is persisted with seen=false, the conversation leaves the
// Empty state if this was its first message, and two fan-outs happen: a
// MessageReceived event to the conversation group and an asymmetric
// ConversationUpdated event to each participant's personal group.
//
// Per-conversation ordering follows the store's commit order (a single id
// sequence); events are published only after the insert has committed.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*entity.Message, error) {
	if err := entity.ValidateContent(in.Variant, in.Content); err != nil {
		return nil, err
	}

	conv, err := s.convs.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.IsBlocked {
		return nil, entity.ErrConversationBlocked
	}

	isParticipant, err := s.convs.IsParticipant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("checking sender membership: %w", err)
	}
	if !isParticipant {
		return nil, entity.ErrNotAParticipant
	}

	msg := &entity.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Variant:        in.Variant,
		Content:        in.Content,
		MediaKey:       in.MediaKey,
		SentAt:         s.now().UTC(),
		Seen:           false,
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return nil, err
	}

	if conv.IsEmpty {
		if err := s.convs.MarkActive(ctx, in.ConversationID); err != nil {
			return nil, fmt.Errorf("marking conversation active: %w", err)
		}
		conv.IsEmpty = false
	}

	s.events.PublishToConversation(in.ConversationID, entity.EventMessageReceived, entity.MessageReceivedEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Variant:        msg.Variant.String(),
		SentAt:         msg.SentAt,
		Seen:           msg.Seen,
	})

	s.publishConversationUpdated(ctx, conv, msg)

	return msg, nil
}

// publishConversationUpdated refreshes each participant's chat list entry.
// The sender's copy carries hasUnread=false, the other party's true, and each
// copy is annotated with the *other* user's display name.
func (s *Service) publishConversationUpdated(ctx context.Context, conv *entity.Conversation, msg *entity.Message) {
	participants, err := s.convs.Participants(ctx, conv.ID)
	if err != nil {
		s.logger.Error("loading participants for fan-out", "conversation_id", conv.ID, "error", err)
		return
	}

	listing := listingSummaryOf(conv)
	for _, p := range participants {
		other := otherParticipant(participants, p.UserID)

		s.events.PublishToUser(p.UserID, entity.EventConversationUpdated, entity.ConversationUpdatedEvent{
			ConversationID:     conv.ID,
			IsEmpty:            conv.IsEmpty,
			OtherUserID:        other,
			OtherUserName:      s.displayName(ctx, other),
			Listing:            listing,
			LastMessagePreview: msg.Content,
			HasUnread:          p.UserID != msg.SenderID,
		})
	}
}

func otherParticipant(participants []entity.Participant, userID string) string {
	for _, p := range participants {
		if p.UserID != userID {
			return p.UserID
		}
	}
	return ""
}

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// DefaultRecallWindow bounds how long after sending a message its sender may
// still retract it.
const DefaultRecallWindow = 5 * time.Minute

// ConversationRepository defines the interface for conversation storage.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, conv *entity.Conversation, participantIDs [2]string) (*entity.Conversation, error)
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	MarkActive(ctx context.Context, id string) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	Participants(ctx context.Context, conversationID string) ([]entity.Participant, error)
	ListByUser(ctx context.Context, userID string) ([]entity.ConversationPreview, error)
}

// MessageRepository defines the interface for message storage.
type MessageRepository interface {
	Insert(ctx context.Context, msg *entity.Message) error
	GetByID(ctx context.Context, id int64) (*entity.Message, error)
	ListByConversation(ctx context.Context, conversationID, viewerID string) ([]entity.Message, error)
	MarkSeen(ctx context.Context, conversationID, viewerID string, at time.Time) (lastSeenID int64, count int, err error)
	Delete(ctx context.Context, id int64) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// MarkerRepository defines the interface for per-viewer deletion markers.
type MarkerRepository interface {
	Add(ctx context.Context, messageID int64, userID string) error
	AddAllForConversation(ctx context.Context, conversationID, userID string) (int64, error)
}

// EventPublisher fans events out to live connections. Implemented by the
// realtime registry; delivery is best-effort and never blocks persistence.
type EventPublisher interface {
	PublishToConversation(conversationID, event string, payload any)
	PublishToUser(userID, event string, payload any)
}

// MediaStore is the external object store holding chat media. Deletion
// failures during recall are recoverable and must not abort the recall.
type MediaStore interface {
	DeleteAsset(ctx context.Context, key string, variant entity.Variant) error
	IsTemporary(key string) bool
}

// UserDirectory resolves user display names for fan-out payloads.
type UserDirectory interface {
	GetDisplayName(ctx context.Context, userID string) (string, error)
}

// ListingCatalog is the read-only marketplace lookup consulted when a
// conversation is first created.
type ListingCatalog interface {
	GetSummary(ctx context.Context, listingID int64) (*entity.ListingSummary, error)
}

// Service implements the conversation and messaging engine: lifecycle,
// message state machine, read receipts, recall policy and history queries.
type Service struct {
	convs    ConversationRepository
	msgs     MessageRepository
	markers  MarkerRepository
	events   EventPublisher
	media    MediaStore
	users    UserDirectory
	listings ListingCatalog

	recallWindow time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// New creates the chat service.
func New(
	convs ConversationRepository,
	msgs MessageRepository,
	markers MarkerRepository,
	events EventPublisher,
	media MediaStore,
	users UserDirectory,
	listings ListingCatalog,
	recallWindow time.Duration,
	logger *slog.Logger,
) *Service {
	if recallWindow <= 0 {
		recallWindow = DefaultRecallWindow
	}
	return &Service{
		convs:        convs,
		msgs:         msgs,
		markers:      markers,
		events:       events,
		media:        media,
		users:        users,
		listings:     listings,
		recallWindow: recallWindow,
		logger:       logger,
		now:          time.Now,
	}
}

// displayName resolves a user's name for event payloads. Lookup failures are
// logged and degrade to an empty name; they never block a publish.
func (s *Service) displayName(ctx context.Context, userID string) string {
	name, err := s.users.GetDisplayName(ctx, userID)
	if err != nil {
		s.logger.Warn("resolving display name", "user_id", userID, "error", err)
		return ""
	}
	return name
}

func listingSummaryOf(conv *entity.Conversation) *entity.ListingSummary {
	if conv.ListingID == 0 {
		return nil
	}
	return &entity.ListingSummary{
		ID:           conv.ListingID,
		Title:        conv.ListingTitle,
		Price:        conv.ListingPrice,
		ThumbnailURL: conv.ListingThumbnail,
	}
}

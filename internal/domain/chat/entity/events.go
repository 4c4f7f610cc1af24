package entity

import "time"

// Event names on the server→client wire. MessageReceived, MessagesSeen and
// MessageRecalled go to the conversation group; ConversationUpdated and
// UnreadStateCleared go to a user's personal group.
const (
	EventMessageReceived     = "MessageReceived"
	EventMessagesSeen        = "MessagesSeen"
	EventMessageRecalled     = "MessageRecalled"
	EventConversationUpdated = "ConversationUpdated"
	EventUnreadStateCleared  = "UnreadStateCleared"
	EventError               = "Error"
)

// MessageReceivedEvent announces a newly persisted message.
type MessageReceivedEvent struct {
	MessageID      int64     `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Variant        string    `json:"variant"`
	SentAt         time.Time `json:"sent_at"`
	Seen           bool      `json:"seen"`
}

// MessagesSeenEvent tells the conversation that a viewer has read everything
// up to and including LastSeenMessageID.
type MessagesSeenEvent struct {
	ConversationID    string `json:"conversation_id"`
	LastSeenMessageID int64  `json:"last_seen_message_id"`
	ViewerID          string `json:"viewer_id"`
}

// MessageRecalledEvent announces a sender-initiated deletion.
type MessageRecalledEvent struct {
	MessageID      int64  `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	RecalledBy     string `json:"recalled_by"`
	Variant        string `json:"variant"`
}

// ConversationUpdatedEvent refreshes one user's conversation list entry.
// The copy sent to the message sender carries HasUnread=false; the copy sent
// to the other participant carries HasUnread=true.
type ConversationUpdatedEvent struct {
	ConversationID     string          `json:"conversation_id"`
	IsEmpty            bool            `json:"is_empty"`
	OtherUserID        string          `json:"other_user_id"`
	OtherUserName      string          `json:"other_user_name,omitempty"`
	Listing            *ListingSummary `json:"listing,omitempty"`
	LastMessagePreview string          `json:"last_message_preview,omitempty"`
	HasUnread          bool            `json:"has_unread"`
}

// UnreadStateClearedEvent tells the viewer's other devices that a
// conversation no longer has unread messages.
type UnreadStateClearedEvent struct {
	ConversationID string `json:"conversation_id"`
}

// ErrorEvent is delivered to the offending connection only.
type ErrorEvent struct {
	Message string `json:"message"`
}

package entity

import (
	"fmt"
	"strings"
	"time"
)

// Variant is the message payload kind. It is a proper tagged value in code;
// the lowercase string form exists only at the wire and storage boundaries.
type Variant int

const (
	VariantText Variant = iota + 1
	VariantImage
	VariantVideo
)

// String returns the wire form of the variant.
func (v Variant) String() string {
	switch v {
	case VariantText:
		return "text"
	case VariantImage:
		return "image"
	case VariantVideo:
		return "video"
	default:
		return "unknown"
	}
}

// IsMedia reports whether the variant carries a remotely stored asset.
func (v Variant) IsMedia() bool {
	return v == VariantImage || v == VariantVideo
}

// ParseVariant converts the wire form back into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "text":
		return VariantText, nil
	case "image":
		return VariantImage, nil
	case "video":
		return VariantVideo, nil
	default:
		return 0, fmt.Errorf("unknown message variant %q", s)
	}
}

// Message is a single message in a conversation. Content holds the text body
// for text messages and the public URL for media messages; MediaKey is the
// object-store key backing a media message and is empty for text.
//
// Messages are immutable after creation except for the seen fields, and are
// removed entirely on recall.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Variant        Variant    `json:"-"`
	Content        string     `json:"content"`
	MediaKey       string     `json:"media_key,omitempty"`
	SentAt         time.Time  `json:"sent_at"`
	Seen           bool       `json:"seen"`
	SeenAt         *time.Time `json:"seen_at,omitempty"`
}

// DeletionMarker records that a user has hidden a message from their own
// view. It never affects what any other participant sees.
type DeletionMarker struct {
	MessageID int64  `json:"message_id"`
	UserID    string `json:"user_id"`
}

// ValidateContent checks the payload for a new message. Text bodies must be
// non-blank; media messages must reference an uploaded asset URL.
func ValidateContent(v Variant, content string) error {
	if v == VariantText {
		if strings.TrimSpace(content) == "" {
			return ErrEmptyContent
		}
		return nil
	}
	if content == "" {
		return ErrEmptyContent
	}
	return nil
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

func TestMarkSeenBatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.startConversation(ctx, 0)

	first, err := f.svc.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ID, SenderID: "bob", Variant: entity.VariantText, Content: "one",
	})
	require.NoError(t, err)
	second, err := f.svc.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ID, SenderID: "bob", Variant: entity.VariantText, Content: "two",
	})
	require.NoError(t, err)
	f.pub.reset()

	require.NoError(t, f.svc.MarkSeen(ctx, conv.ID, "alice"))

	history, err := f.svc.History(ctx, conv.ID, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, msg := range history {
		assert.True(t, msg.Seen)
		require.NotNil(t, msg.SeenAt)
	}

	seen := f.pub.byEvent(entity.EventMessagesSeen)
	require.Len(t, seen, 1)
	assert.Equal(t, "conversation", seen[0].Scope)
	payload := seen[0].Payload.(entity.MessagesSeenEvent)
	assert.Equal(t, second.ID, payload.LastSeenMessageID)
	assert.Greater(t, payload.LastSeenMessageID, first.ID)
	assert.Equal(t, "alice", payload.ViewerID)

	cleared := f.pub.byEvent(entity.EventUnreadStateCleared)
	require.Len(t, cleared, 1)
	assert.Equal(t, "user", cleared[0].Scope)
	assert.Equal(t, "alice", cleared[0].Target)
}

func TestMarkSeenNothingUnseenIsNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.startConversation(ctx, 0)

	_, err := f.svc.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ID, SenderID: "bob", Variant: entity.VariantText, Content: "one",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkSeen(ctx, conv.ID, "alice"))
	f.pub.reset()

	// Second pass has nothing left to mark.
	require.NoError(t, f.svc.MarkSeen(ctx, conv.ID, "alice"))
	assert.Empty(t, f.pub.calls)
}

func TestMarkSeenSkipsViewersOwnMessages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.startConversation(ctx, 0)

	mine, err := f.svc.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ID, SenderID: "alice", Variant: entity.VariantText, Content: "mine",
	})
	require.NoError(t, err)
	f.pub.reset()

	require.NoError(t, f.svc.MarkSeen(ctx, conv.ID, "alice"))
	assert.Empty(t, f.pub.calls, "a viewer cannot mark their own messages seen")

	history, err := f.svc.History(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, mine.ID, history[0].ID)
	assert.False(t, history[0].Seen)
}

func TestUnreadCount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.startConversation(ctx, 0)

	for _, content := range []string{"one", "two", "three"} {
		_, err := f.svc.SendMessage(ctx, SendMessageInput{
			ConversationID: conv.ID, SenderID: "bob", Variant: entity.VariantText, Content: content,
		})
		require.NoError(t, err)
	}

	n, err := f.svc.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// The sender has nothing unread.
	n, err = f.svc.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Delete-for-me removes the message from the count.
	history, err := f.svc.History(ctx, conv.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteForMe(ctx, history[0].ID, "alice"))

	n, err = f.svc.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// Marking seen clears the rest.
	require.NoError(t, f.svc.MarkSeen(ctx, conv.ID, "alice"))
	n, err = f.svc.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
}

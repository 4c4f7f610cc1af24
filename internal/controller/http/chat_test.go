package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/service"
)

// stubChatService returns canned values per method.
type stubChatService struct {
	conv        *entity.Conversation
	previews    []entity.ConversationPreview
	messages    []entity.Message
	unreadCount int64
	err         error
}

func (s *stubChatService) StartConversation(context.Context, service.StartConversationInput) (*entity.Conversation, error) {
	return s.conv, s.err
}
func (s *stubChatService) GetConversation(context.Context, string) (*entity.Conversation, error) {
	return s.conv, s.err
}
func (s *stubChatService) ListConversations(context.Context, string) ([]entity.ConversationPreview, error) {
	return s.previews, s.err
}
func (s *stubChatService) History(context.Context, string, string) ([]entity.Message, error) {
	return s.messages, s.err
}
func (s *stubChatService) UnreadCount(context.Context, string) (int64, error) {
	return s.unreadCount, s.err
}
func (s *stubChatService) SetBlocked(context.Context, string, bool) error { return s.err }
func (s *stubChatService) DeleteForMe(context.Context, int64, string) error {
	return s.err
}
func (s *stubChatService) DeleteConversationForMe(context.Context, string, string) error {
	return s.err
}

func newTestServer(svc ChatService) *httptest.Server {
	r := chi.NewRouter()
	NewChatHandler(svc).RegisterRoutes(r)
	return httptest.NewServer(r)
}

func TestStartConversationValidation(t *testing.T) {
	srv := newTestServer(&stubChatService{conv: &entity.Conversation{ID: "alice-bob-42"}})
	defer srv.Close()

	t.Run("valid request returns the conversation id", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/chat/start", "application/json",
			strings.NewReader(`{"user1_id":"alice","user2_id":"bob","listing_id":42}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "alice-bob-42", body["conversation_id"])
	})

	t.Run("missing users rejected", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/chat/start", "application/json",
			strings.NewReader(`{"user1_id":"alice"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("self conversation rejected", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/chat/start", "application/json",
			strings.NewReader(`{"user1_id":"alice","user2_id":"alice"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHistoryRequiresViewer(t *testing.T) {
	srv := newTestServer(&stubChatService{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chat/history/alice-bob")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryVariantTravelsAsString(t *testing.T) {
	srv := newTestServer(&stubChatService{messages: []entity.Message{
		{ID: 1, ConversationID: "alice-bob", SenderID: "alice", Variant: entity.VariantImage, Content: "https://cdn.example.com/chat/a.jpg"},
	}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chat/history/alice-bob?viewer_id=bob")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, "image", views[0]["variant"])
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"conversation not found", entity.ErrConversationNotFound, http.StatusNotFound},
		{"message not found", entity.ErrMessageNotFound, http.StatusNotFound},
		{"empty content", entity.ErrEmptyContent, http.StatusBadRequest},
		{"wrong variant", entity.ErrWrongVariant, http.StatusBadRequest},
		{"not a participant", entity.ErrNotAParticipant, http.StatusForbidden},
		{"forbidden", entity.ErrForbidden, http.StatusForbidden},
		{"recall window expired", entity.ErrRecallWindowExpired, http.StatusConflict},
		{"conversation blocked", entity.ErrConversationBlocked, http.StatusConflict},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleChatError(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestDeleteForMeBadMessageID(t *testing.T) {
	srv := newTestServer(&stubChatService{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chat/messages/not-a-number/delete-for-me", "application/json",
		strings.NewReader(`{"user_id":"alice"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

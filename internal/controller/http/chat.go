package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/service"
	"github.com/DinhCNTT/unimarket-chat/internal/httpx/response"
)

// ChatService defines the interface for chat operations used over REST.
type ChatService interface {
	StartConversation(ctx context.Context, in service.StartConversationInput) (*entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]entity.ConversationPreview, error)
	History(ctx context.Context, conversationID, viewerID string) ([]entity.Message, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	SetBlocked(ctx context.Context, conversationID string, blocked bool) error
	DeleteForMe(ctx context.Context, messageID int64, viewerID string) error
	DeleteConversationForMe(ctx context.Context, conversationID, viewerID string) error
}

// ChatHandler handles HTTP requests for conversations and messages
type ChatHandler struct {
	svc ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		// Start (or return) a conversation between two users
		r.Post("/start", h.StartConversation())

		// List a user's conversations
		r.Get("/user/{userId}", h.ListConversations())

		// Message history as seen by a viewer
		r.Get("/history/{conversationId}", h.History())

		// Cached listing info for a conversation
		r.Get("/info/{conversationId}", h.Info())

		// Total unread count for a user
		r.Get("/unread-count/{userId}", h.UnreadCount())

		// Block / unblock a conversation
		r.Post("/conversations/{conversationId}/block", h.SetBlocked())

		// Viewer-local deletion
		r.Post("/messages/{messageId}/delete-for-me", h.DeleteForMe())
		r.Post("/conversations/{conversationId}/delete-for-me", h.DeleteConversationForMe())
	})
}

// StartConversationRequest represents the request to start a conversation
type StartConversationRequest struct {
	User1ID   string `json:"user1_id"`
	User2ID   string `json:"user2_id"`
	ListingID int64  `json:"listing_id"`
}

// StartConversation handles POST /chat/start
func (h *ChatHandler) StartConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
		if req.User1ID == "" || req.User2ID == "" {
			response.BadRequest(w, "user1_id and user2_id are required")
			return
		}
		if req.User1ID == req.User2ID {
			response.BadRequest(w, "cannot start a conversation with yourself")
			return
		}

		conv, err := h.svc.StartConversation(r.Context(), service.StartConversationInput{
			User1ID:   req.User1ID,
			User2ID:   req.User2ID,
			ListingID: req.ListingID,
		})
		if err != nil {
			handleChatError(w, err)
			return
		}

		response.OK(w, map[string]string{"conversation_id": conv.ID})
	}
}

// ListConversations handles GET /chat/user/{userId}
func (h *ChatHandler) ListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		previews, err := h.svc.ListConversations(r.Context(), userID)
		if err != nil {
			handleChatError(w, err)
			return
		}
		if previews == nil {
			previews = []entity.ConversationPreview{}
		}

		response.OK(w, previews)
	}
}

// messageView is the wire form of a message; the variant travels as its
// lowercase string.
type messageView struct {
	entity.Message
	Variant string `json:"variant"`
}

// History handles GET /chat/history/{conversationId}?viewer_id=
func (h *ChatHandler) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "conversationId")
		viewerID := r.URL.Query().Get("viewer_id")
		if viewerID == "" {
			response.BadRequest(w, "viewer_id is required")
			return
		}

		messages, err := h.svc.History(r.Context(), conversationID, viewerID)
		if err != nil {
			handleChatError(w, err)
			return
		}

		views := make([]messageView, 0, len(messages))
		for _, m := range messages {
			views = append(views, messageView{Message: m, Variant: m.Variant.String()})
		}
		response.OK(w, views)
	}
}

// Info handles GET /chat/info/{conversationId}
func (h *ChatHandler) Info() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, err := h.svc.GetConversation(r.Context(), chi.URLParam(r, "conversationId"))
		if err != nil {
			handleChatError(w, err)
			return
		}

		response.OK(w, map[string]any{
			"listing_id":        conv.ListingID,
			"listing_title":     conv.ListingTitle,
			"listing_price":     conv.ListingPrice,
			"listing_thumbnail": conv.ListingThumbnail,
			"is_blocked":        conv.IsBlocked,
		})
	}
}

// UnreadCount handles GET /chat/unread-count/{userId}
func (h *ChatHandler) UnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := h.svc.UnreadCount(r.Context(), chi.URLParam(r, "userId"))
		if err != nil {
			handleChatError(w, err)
			return
		}

		response.OK(w, map[string]int64{"unread_count": count})
	}
}

// SetBlockedRequest represents the block toggle body
type SetBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

// SetBlocked handles POST /chat/conversations/{conversationId}/block
func (h *ChatHandler) SetBlocked() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetBlockedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}

		if err := h.svc.SetBlocked(r.Context(), chi.URLParam(r, "conversationId"), req.Blocked); err != nil {
			handleChatError(w, err)
			return
		}
		response.NoContent(w)
	}
}

// DeleteForMeRequest identifies the viewer hiding a message
type DeleteForMeRequest struct {
	UserID string `json:"user_id"`
}

// DeleteForMe handles POST /chat/messages/{messageId}/delete-for-me
func (h *ChatHandler) DeleteForMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, err := strconv.ParseInt(chi.URLParam(r, "messageId"), 10, 64)
		if err != nil {
			response.BadRequest(w, "invalid message id")
			return
		}

		var req DeleteForMeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			response.BadRequest(w, "user_id is required")
			return
		}

		if err := h.svc.DeleteForMe(r.Context(), messageID, req.UserID); err != nil {
			handleChatError(w, err)
			return
		}
		response.NoContent(w)
	}
}

// DeleteConversationForMe handles POST /chat/conversations/{conversationId}/delete-for-me
func (h *ChatHandler) DeleteConversationForMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteForMeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			response.BadRequest(w, "user_id is required")
			return
		}

		if err := h.svc.DeleteConversationForMe(r.Context(), chi.URLParam(r, "conversationId"), req.UserID); err != nil {
			handleChatError(w, err)
			return
		}
		response.NoContent(w)
	}
}

// handleChatError maps domain errors to HTTP status codes
func handleChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrConversationNotFound),
		errors.Is(err, entity.ErrMessageNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, entity.ErrEmptyContent),
		errors.Is(err, entity.ErrWrongVariant):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrNotAParticipant),
		errors.Is(err, entity.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, entity.ErrRecallWindowExpired),
		errors.Is(err, entity.ErrConversationBlocked):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w, "internal server error")
	}
}

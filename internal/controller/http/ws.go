package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/service"
	"github.com/DinhCNTT/unimarket-chat/internal/realtime"
)

// MessengerService defines the chat operations reachable over the websocket.
type MessengerService interface {
	SendMessage(ctx context.Context, in service.SendMessageInput) (*entity.Message, error)
	MarkSeen(ctx context.Context, conversationID, viewerID string) error
	RecallText(ctx context.Context, messageID int64, requesterID string) error
	RecallMedia(ctx context.Context, messageID int64, requesterID string) error
}

// WSHandler upgrades HTTP requests to websocket sessions and dispatches
// client commands to the chat service.
type WSHandler struct {
	registry *realtime.Registry
	svc      MessengerService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(registry *realtime.Registry, svc MessengerService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		svc:      svc,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement happens at the gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// command is one client→server frame.
type command struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	ViewerID       string `json:"viewer_id,omitempty"`
	RequesterID    string `json:"requester_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Variant        string `json:"variant,omitempty"`
	MediaKey       string `json:"media_key,omitempty"`
	MessageID      int64  `json:"message_id,omitempty"`
}

// ServeHTTP handles GET /ws?user_id=
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := realtime.NewConnection(userID, ws)
	conn.Start()
	h.registry.Register(conn.ID, userID, conn)
	h.logger.Info("websocket connected", "connection_id", conn.ID, "user_id", userID)

	defer func() {
		h.registry.Disconnect(conn.ID)
		conn.Close(websocket.CloseNormalClosure, "bye")
		h.logger.Info("websocket disconnected", "connection_id", conn.ID, "user_id", userID)
	}()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var cmd command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			h.sendError(conn.ID, "malformed command")
			continue
		}
		h.dispatch(r.Context(), conn.ID, cmd)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, cmd command) {
	switch cmd.Action {
	case "join_conversation":
		h.registry.JoinConversation(connID, cmd.ConversationID)

	case "leave_conversation":
		h.registry.LeaveConversation(connID, cmd.ConversationID)

	case "send_message":
		variant, err := entity.ParseVariant(cmd.Variant)
		if err != nil {
			h.sendError(connID, err.Error())
			return
		}
		_, err = h.svc.SendMessage(ctx, service.SendMessageInput{
			ConversationID: cmd.ConversationID,
			SenderID:       cmd.SenderID,
			Variant:        variant,
			Content:        cmd.Content,
			MediaKey:       cmd.MediaKey,
		})
		if err != nil {
			h.sendError(connID, err.Error())
		}

	case "mark_seen":
		if err := h.svc.MarkSeen(ctx, cmd.ConversationID, cmd.ViewerID); err != nil {
			h.sendError(connID, err.Error())
		}

	case "recall_text":
		if err := h.svc.RecallText(ctx, cmd.MessageID, cmd.RequesterID); err != nil {
			h.sendError(connID, err.Error())
		}

	case "recall_media":
		if err := h.svc.RecallMedia(ctx, cmd.MessageID, cmd.RequesterID); err != nil {
			h.sendError(connID, err.Error())
		}

	default:
		h.sendError(connID, "unknown action")
	}
}

func (h *WSHandler) sendError(connID, message string) {
	h.registry.SendTo(connID, entity.EventError, entity.ErrorEvent{Message: message})
}

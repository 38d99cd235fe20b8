package handler

import (
	"net/http"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/chat"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/middleware"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/payload"
	"github.com/vasapolrittideah/chatdesk/shared/utilities"
	"github.com/vasapolrittideah/chatdesk/shared/validation"
)

// ChatHandler serves the protected /api endpoints.
type ChatHandler struct {
	sender    chat.Sender
	validator *validation.Validator
}

func NewChatHandler(sender chat.Sender, validator *validation.Validator) *ChatHandler {
	return &ChatHandler{sender: sender, validator: validator}
}

func (h *ChatHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "Access token required")
		return
	}

	utilities.WriteJSON(w, http.StatusOK, payload.MeResponse{
		UserID:   claims.UserID,
		DeviceID: claims.DeviceID,
	})
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "Access token required")
		return
	}

	var req payload.SendMessageRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	receipt, err := h.sender.Send(r.Context(), chat.Message{
		UserID:         claims.UserID,
		DeviceID:       claims.DeviceID,
		ConversationID: req.ConversationID,
		Text:           req.Message,
	})
	if err != nil {
		internalError(w, r, err, "failed to send message")
		return
	}

	utilities.WriteJSON(w, http.StatusAccepted, payload.SendMessageResponse{
		ConversationID: receipt.ConversationID,
		MessageID:      receipt.MessageID,
	})
}

package triggers

import (
	"net/http"

	"github.com/connectapp/connect-backend/internal/errors"
	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// Handler exposes the record-creation trigger entry points. The platform in
// front of this service delivers each newly created document exactly here;
// success or failure is reported via status code only, never a retry hint.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new trigger handler.
func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("trigger-handler"),
	}
}

// CallInviteCreated handles POST /triggers/call-invites.
//
// Request body mirrors the created document:
//
//	{"inviteId": "...", "fromUid": "...", "fromName": "...", "toUid": "...", "channel": "...", "isVideo": true}
//
// Malformed invites are accepted and dropped; only storage or delivery
// failures surface as 500.
func (h *Handler) CallInviteCreated(c *gin.Context) {
	var body struct {
		InviteID string `json:"inviteId"`
		FromUID  string `json:"fromUid"`
		FromName string `json:"fromName"`
		ToUID    string `json:"toUid"`
		Channel  string `json:"channel"`
		IsVideo  bool   `json:"isVideo"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		errors.AbortWithBadRequest(c, "invalid request body", nil)
		return
	}

	invite := CallInvite{
		ID:       body.InviteID,
		FromUID:  body.FromUID,
		FromName: body.FromName,
		ToUID:    body.ToUID,
		Channel:  body.Channel,
		IsVideo:  body.IsVideo,
	}

	if err := h.service.HandleCallInvite(c.Request.Context(), invite); err != nil {
		h.logger.LogError(c.Request.Context(), err, "call invite trigger failed")
		errors.AbortWithInternal(c, "failed to process call invite")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ChatMessageCreated handles POST /triggers/chat-messages.
//
// Request body mirrors the created document plus its identifier context:
//
//	{"messageId": "...", "chatId": "...", "authorId": "...", "text": "..."}
func (h *Handler) ChatMessageCreated(c *gin.Context) {
	var body struct {
		MessageID string `json:"messageId"`
		ChatID    string `json:"chatId"`
		AuthorID  string `json:"authorId"`
		Text      string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		errors.AbortWithBadRequest(c, "invalid request body", nil)
		return
	}

	message := ChatMessage{
		ID:       body.MessageID,
		ChatID:   body.ChatID,
		AuthorID: body.AuthorID,
		Text:     body.Text,
	}

	if err := h.service.HandleChatMessage(c.Request.Context(), message); err != nil {
		h.logger.LogError(c.Request.Context(), err, "chat message trigger failed")
		errors.AbortWithInternal(c, "failed to process chat message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/auth"
	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/service"
)

// MessageHandler exposes the message endpoints. Every mutation here mirrors
// a realtime gateway event and triggers the same broadcast.
type MessageHandler struct {
	service *service.ChatService
	log     *zap.SugaredLogger
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(svc *service.ChatService, log *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{service: svc, log: log}
}

type attachmentRequest struct {
	URL      string `json:"url" binding:"required"`
	FileType string `json:"file_type"`
	FileName string `json:"file_name"`
}

type sendMessageRequest struct {
	Content          string              `json:"content"`
	EncryptedContent string              `json:"encrypted_content"`
	MessageType      string              `json:"message_type"`
	ScriptureVerse   string              `json:"scripture_verse"`
	ScriptureRef     string              `json:"scripture_reference"`
	ReplyToID        int64               `json:"reply_to_id"`
	Attachments      []attachmentRequest `json:"attachments"`
}

// Send handles POST /api/chats/:chatId/messages.
func (h *MessageHandler) Send(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input := models.NewMessageInput{
		Content:          req.Content,
		EncryptedContent: req.EncryptedContent,
		MessageType:      req.MessageType,
		ScriptureVerse:   req.ScriptureVerse,
		ScriptureRef:     req.ScriptureRef,
		ReplyToID:        req.ReplyToID,
	}
	for _, a := range req.Attachments {
		input.Attachments = append(input.Attachments, models.Attachment{
			URL:      a.URL,
			FileType: a.FileType,
			FileName: a.FileName,
		})
	}

	msg, err := h.service.SendMessage(c.Request.Context(), chatID, auth.UserID(c), input, false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// List handles GET /api/chats/:chatId/messages.
func (h *MessageHandler) List(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	msgs, total, err := h.service.ListMessages(c.Request.Context(), chatID, auth.UserID(c), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":  msgs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type editMessageRequest struct {
	Content          string `json:"content"`
	EncryptedContent string `json:"encrypted_content"`
}

// Edit handles PUT /api/messages/:messageId.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.service.EditMessage(c.Request.Context(), messageID, auth.UserID(c), req.Content, req.EncryptedContent)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Delete handles DELETE /api/messages/:messageId.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	if _, err := h.service.DeleteMessage(c.Request.Context(), messageID, auth.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type forwardRequest struct {
	TargetChatID int64 `json:"target_chat_id" binding:"required"`
}

// Forward handles POST /api/messages/:messageId/forward.
func (h *MessageHandler) Forward(c *gin.Context) {
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	var req forwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_chat_id is required"})
		return
	}

	msg, err := h.service.ForwardMessage(c.Request.Context(), messageID, req.TargetChatID, auth.UserID(c), false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// React handles POST /api/messages/:messageId/reactions.
func (h *MessageHandler) React(c *gin.Context) {
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emoji is required"})
		return
	}

	delta, err := h.service.ToggleReaction(c.Request.Context(), messageID, auth.UserID(c), req.Emoji)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction": delta})
}

// Pin handles POST /api/chats/:chatId/messages/:messageId/pin.
func (h *MessageHandler) Pin(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	if err := h.service.PinMessage(c.Request.Context(), chatID, messageID, auth.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": true})
}

// Unpin handles DELETE /api/chats/:chatId/messages/:messageId/pin.
func (h *MessageHandler) Unpin(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	if err := h.service.UnpinMessage(c.Request.Context(), chatID, messageID, auth.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": false})
}

type markReadRequest struct {
	UptoMessageID int64 `json:"upto_message_id" binding:"required"`
}

// MarkRead handles POST /api/chats/:chatId/read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upto_message_id is required"})
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), chatID, auth.UserID(c), req.UptoMessageID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// Search handles GET /api/chats/:chatId/search.
func (h *MessageHandler) Search(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	msgs, total, err := h.service.SearchMessages(c.Request.Context(), chatID, auth.UserID(c), c.Query("q"), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":  msgs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

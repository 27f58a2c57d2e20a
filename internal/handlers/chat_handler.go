package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/auth"
	"wisdomwalk-chat-service/internal/service"
)

// ChatHandler exposes chat lifecycle and membership endpoints.
type ChatHandler struct {
	service *service.ChatService
	log     *zap.SugaredLogger
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(svc *service.ChatService, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{service: svc, log: log}
}

type createDirectRequest struct {
	FriendID int64 `json:"friend_id" binding:"required"`
}

// CreateDirect handles POST /api/chats/direct.
func (h *ChatHandler) CreateDirect(c *gin.Context) {
	var req createDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "friend_id is required"})
		return
	}
	userID := auth.UserID(c)
	if req.FriendID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a chat with yourself"})
		return
	}

	chat, created, err := h.service.CreateDirectChat(c.Request.Context(), userID, req.FriendID)
	if err != nil {
		fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"chat": chat, "created": created})
}

type createGroupRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	MemberIDs   []int64 `json:"member_ids" binding:"required,min=1"`
}

// CreateGroup handles POST /api/chats/group.
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and member_ids are required"})
		return
	}

	chat, err := h.service.CreateGroupChat(c.Request.Context(), auth.UserID(c), req.Name, req.Description, req.MemberIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

// List handles GET /api/chats.
func (h *ChatHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	summaries, total, err := h.service.ListChats(c.Request.Context(), auth.UserID(c), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chats":     summaries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Mute handles POST /api/chats/:chatId/mute.
func (h *ChatHandler) Mute(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	if err := h.service.SetMuted(c.Request.Context(), chatID, auth.UserID(c), true); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": true})
}

// Unmute handles DELETE /api/chats/:chatId/mute.
func (h *ChatHandler) Unmute(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	if err := h.service.SetMuted(c.Request.Context(), chatID, auth.UserID(c), false); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": false})
}

// Leave handles POST /api/chats/:chatId/leave.
func (h *ChatHandler) Leave(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	if err := h.service.LeaveChat(c.Request.Context(), chatID, auth.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

type participantRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// AddParticipant handles POST /api/chats/:chatId/participants.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if err := h.service.AddGroupParticipant(c.Request.Context(), chatID, auth.UserID(c), req.UserID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": true})
}

// RemoveParticipant handles DELETE /api/chats/:chatId/participants/:userId.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := h.service.RemoveGroupParticipant(c.Request.Context(), chatID, auth.UserID(c), userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

type typingRequest struct {
	Typing *bool `json:"typing" binding:"required"`
}

// Typing handles POST /api/chats/:chatId/typing, mirroring the realtime
// typing indicator for clients without a socket.
func (h *ChatHandler) Typing(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "typing is required"})
		return
	}
	if err := h.service.Typing(c.Request.Context(), chatID, auth.UserID(c), *req.Typing); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Block handles POST /api/blocks.
func (h *ChatHandler) Block(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if err := h.service.BlockUser(c.Request.Context(), auth.UserID(c), req.UserID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": true})
}

// Unblock handles DELETE /api/blocks/:userId.
func (h *ChatHandler) Unblock(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := h.service.UnblockUser(c.Request.Context(), auth.UserID(c), userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": false})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the authenticated REST API.
func RegisterRoutes(api *gin.RouterGroup, chats *ChatHandler, messages *MessageHandler) {
	api.GET("/chats", chats.List)
	api.POST("/chats/direct", chats.CreateDirect)
	api.POST("/chats/group", chats.CreateGroup)

	api.GET("/chats/:chatId/messages", messages.List)
	api.POST("/chats/:chatId/messages", messages.Send)
	api.GET("/chats/:chatId/search", messages.Search)
	api.POST("/chats/:chatId/read", messages.MarkRead)
	api.POST("/chats/:chatId/messages/:messageId/pin", messages.Pin)
	api.DELETE("/chats/:chatId/messages/:messageId/pin", messages.Unpin)

	api.POST("/chats/:chatId/mute", chats.Mute)
	api.DELETE("/chats/:chatId/mute", chats.Unmute)
	api.POST("/chats/:chatId/leave", chats.Leave)
	api.POST("/chats/:chatId/typing", chats.Typing)
	api.POST("/chats/:chatId/participants", chats.AddParticipant)
	api.DELETE("/chats/:chatId/participants/:userId", chats.RemoveParticipant)

	api.PUT("/messages/:messageId", messages.Edit)
	api.DELETE("/messages/:messageId", messages.Delete)
	api.POST("/messages/:messageId/forward", messages.Forward)
	api.POST("/messages/:messageId/reactions", messages.React)

	api.POST("/blocks", chats.Block)
	api.DELETE("/blocks/:userId", chats.Unblock)
}

// Health responds to liveness probes.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

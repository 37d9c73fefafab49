package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/residence-chat/internal/handlers/dto"
	"github.com/thereayou/residence-chat/internal/middleware"
	"github.com/thereayou/residence-chat/internal/services"
)

type MessageHandler struct {
	registry *services.RoomRegistry
	messages *services.MessageLog
	tracker  *services.ReadTracker
}

func NewMessageHandler(registry *services.RoomRegistry, messages *services.MessageLog, tracker *services.ReadTracker) *MessageHandler {
	return &MessageHandler{registry: registry, messages: messages, tracker: tracker}
}

// GetRoomMessages returns the full ordered log of the room.
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	room, ok := authorizeRoom(c, h.registry, c.Param("id"))
	if !ok {
		return
	}

	messages, err := h.messages.Messages(c.Request.Context(), room.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": dto.NewMessageList(messages)})
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	room, ok := authorizeRoom(c, h.registry, c.Param("id"))
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), room.ID, sender(middleware.CurrentIdentity(c)), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewMessageResponse(*msg))
}

// MarkRead marks everything up to last_seen_id read for the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	room, ok := authorizeRoom(c, h.registry, c.Param("id"))
	if !ok {
		return
	}

	var req dto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	marked, err := h.tracker.MarkReadThrough(c.Request.Context(), room.ID, middleware.CurrentIdentity(c).UserID, req.LastSeenID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func sender(id middleware.Identity) services.Sender {
	return services.Sender{ID: id.UserID, Name: id.Name, Role: id.Role}
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/residence-chat/internal/handlers/dto"
	"github.com/thereayou/residence-chat/internal/middleware"
	"github.com/thereayou/residence-chat/internal/models"
	"github.com/thereayou/residence-chat/internal/services"
)

type NotificationHandler struct {
	feed *services.NotificationFeed
}

func NewNotificationHandler(feed *services.NotificationFeed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// GetFeed returns the caller's latest notifications and unread total.
func (h *NotificationHandler) GetFeed(c *gin.Context) {
	feed, err := h.feed.Feed(c.Request.Context(), middleware.CurrentIdentity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFeedResponse(feed))
}

// Notify queues a notification for another user. Admin only.
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req dto.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := models.DecodePayload(req.Type, req.Data)
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", services.ErrInvalidPayload, err))
		return
	}

	n, err := h.feed.Notify(c.Request.Context(), req.UserID, req.Title, req.Message, payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewNotificationResponse(*n))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.feed.MarkRead(c.Request.Context(), middleware.CurrentIdentity(c).UserID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	marked, err := h.feed.MarkAllRead(c.Request.Context(), middleware.CurrentIdentity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

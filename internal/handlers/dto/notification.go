package dto

import (
	"encoding/json"
	"time"

	"github.com/thereayou/residence-chat/internal/models"
	"github.com/thereayou/residence-chat/internal/services"
)

type NotifyRequest struct {
	UserID  string                  `json:"user_id" binding:"required"`
	Type    models.NotificationType `json:"type" binding:"required"`
	Title   string                  `json:"title" binding:"required"`
	Message string                  `json:"message"`
	Data    json.RawMessage         `json:"data"`
}

type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Data      json.RawMessage         `json:"data,omitempty"`
	Read      bool                    `json:"read"`
	ReadAt    *time.Time              `json:"read_at,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type FeedResponse struct {
	Items  []NotificationResponse `json:"items"`
	Unread int64                  `json:"unread"`
}

func NewNotificationResponse(n models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func NewFeedResponse(f services.Feed) FeedResponse {
	items := make([]NotificationResponse, len(f.Items))
	for i, n := range f.Items {
		items[i] = NewNotificationResponse(n)
	}
	return FeedResponse{Items: items, Unread: f.Unread}
}

package dto

import (
	"time"

	"github.com/thereayou/residence-chat/internal/models"
)

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MarkReadRequest struct {
	LastSeenID string `json:"last_seen_id" binding:"required"`
}

type MessageResponse struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chat_id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	SenderRole models.Role `json:"sender_role"`
	Message    string      `json:"message"`
	Timestamp  time.Time   `json:"timestamp"`
	Read       bool        `json:"read"`
	ReadAt     *time.Time  `json:"read_at,omitempty"`
}

func NewMessageResponse(m models.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderRole: m.SenderRole,
		Message:    m.Message,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
		ReadAt:     m.ReadAt,
	}
}

func NewMessageList(messages []models.ChatMessage) []MessageResponse {
	out := make([]MessageResponse, len(messages))
	for i, m := range messages {
		out[i] = NewMessageResponse(m)
	}
	return out
}

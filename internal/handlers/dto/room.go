package dto

import (
	"time"

	"github.com/thereayou/residence-chat/internal/models"
)

// CreateRoomRequest is only read for admins. Residents always open their own room.
type CreateRoomRequest struct {
	ResidentID   string `json:"resident_id"`
	ResidentName string `json:"resident_name"`
}

type RoomResponse struct {
	ID            string     `json:"id"`
	ResidentID    string     `json:"resident_id"`
	ResidentName  string     `json:"resident_name"`
	AdminID       *string    `json:"admin_id,omitempty"`
	AdminName     *string    `json:"admin_name,omitempty"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int64      `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func NewRoomResponse(r models.ChatRoom) RoomResponse {
	return RoomResponse{
		ID:            r.ID,
		ResidentID:    r.ResidentID,
		ResidentName:  r.ResidentName,
		AdminID:       r.AdminID,
		AdminName:     r.AdminName,
		LastMessage:   r.LastMessage,
		LastMessageAt: r.LastMessageAt,
		UnreadCount:   int64(r.UnreadCount),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

package services

import (
	"context"
	"time"

	"github.com/thereayou/residence-chat/internal/models"
)

// The store ports below are satisfied by database.Database and database.MemoryDatabase.

type RoomStore interface {
	CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) error
	GetRoom(ctx context.Context, id string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
	AssignAdmin(ctx context.Context, roomID, adminID, adminName string, at time.Time) error
	UpdateRoomSummary(ctx context.Context, roomID, preview string, at time.Time) error
}

type MessageStore interface {
	AppendMessage(ctx context.Context, message *models.ChatMessage) error
	RoomMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	CountUnreadMessages(ctx context.Context, roomID, viewerID string) (int64, error)
	MarkMessagesRead(ctx context.Context, roomID, viewerID string, ids []string, at time.Time) (int64, error)
}

type NotificationStore interface {
	SaveNotification(ctx context.Context, notification *models.Notification) error
	RecentNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

type DatabaseService interface {
	Ping(ctx context.Context) error
	RoomStore
	MessageStore
	NotificationStore
}

package database

import (
	"context"
	"time"

	"github.com/thereayou/residence-chat/internal/models"
	"gorm.io/gorm"
)

func (d *Database) AppendMessage(ctx context.Context, message *models.ChatMessage) error {
	return classify(d.db.WithContext(ctx).Create(message).Error)
}

// RoomMessages returns the whole log of a room ordered by (timestamp, id).
func (d *Database) RoomMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := d.db.WithContext(ctx).
		Where("chat_id = ?", roomID).
		Order(`"timestamp" ASC`).
		Order("id ASC").
		Find(&messages).Error
	return messages, classify(err)
}

func (d *Database) CountUnreadMessages(ctx context.Context, roomID, viewerID string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where(`chat_id = ? AND sender_id <> ? AND "read" = ?`, roomID, viewerID, false).
		Count(&count).Error
	return count, classify(err)
}

// MarkMessagesRead flips the given messages to read, skipping the viewer's own and those
// already read. The returned count is the number of rows that actually changed.
func (d *Database) MarkMessagesRead(ctx context.Context, roomID, viewerID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var marked int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChatMessage{}).
			Where(`chat_id = ? AND id IN ? AND sender_id <> ? AND "read" = ?`, roomID, ids, viewerID, false).
			UpdateColumns(map[string]interface{}{"read": true, "read_at": at})
		if res.Error != nil {
			return res.Error
		}
		marked = res.RowsAffected
		if marked == 0 {
			return nil
		}
		return tx.Model(&models.ChatRoom{}).
			Where("id = ?", roomID).
			UpdateColumn("unread_count", gorm.Expr("GREATEST(unread_count - ?, 0)", marked)).Error
	})
	if err != nil {
		return 0, classify(err)
	}
	return marked, nil
}

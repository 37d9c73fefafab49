package database

import (
	"context"
	"time"

	"github.com/thereayou/residence-chat/internal/models"
)

func (d *Database) SaveNotification(ctx context.Context, notification *models.Notification) error {
	return classify(d.db.WithContext(ctx).Create(notification).Error)
}

// RecentNotifications returns up to limit notifications of userID, newest first.
func (d *Database) RecentNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, classify(err)
}

func (d *Database) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where(`user_id = ? AND "read" = ?`, userID, false).
		Count(&count).Error
	return count, classify(err)
}

// MarkNotificationRead reports whether the notification changed. An already read
// notification is not an error; one that userID does not own is ErrNotFound.
func (d *Database) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	res := d.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where(`id = ? AND user_id = ? AND "read" = ?`, id, userID, false).
		UpdateColumns(map[string]interface{}{"read": true, "read_at": at})
	if res.Error != nil {
		return false, classify(res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error
	if err != nil {
		return false, classify(err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// MarkAllNotificationsRead is a single statement, so readers see all or none of it.
func (d *Database) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res := d.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where(`user_id = ? AND "read" = ?`, userID, false).
		UpdateColumns(map[string]interface{}{"read": true, "read_at": at})
	return res.RowsAffected, classify(res.Error)
}

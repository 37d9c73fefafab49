package database

import (
	"context"
	"time"

	"github.com/thereayou/residence-chat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoomIfAbsent inserts room unless a row with the same id exists.
// It returns ErrWriteConflict when the row was already there.
func (d *Database) CreateRoomIfAbsent(ctx context.Context, room *models.ChatRoom) error {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(room)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWriteConflict
	}
	return nil
}

func (d *Database) GetRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, classify(err)
	}
	return &room, nil
}

func (d *Database) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := d.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id ASC").
		Find(&rooms).Error
	return rooms, classify(err)
}

func (d *Database) AssignAdmin(ctx context.Context, roomID, adminID, adminName string, at time.Time) error {
	res := d.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		UpdateColumns(map[string]interface{}{
			"admin_id":   adminID,
			"admin_name": adminName,
			"updated_at": gorm.Expr("GREATEST(updated_at, ?)", at),
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRoomSummary records a sent message on its room. The summary only moves forward in
// time, so concurrent senders converge on the newest message whatever order they land in.
func (d *Database) UpdateRoomSummary(ctx context.Context, roomID, preview string, at time.Time) error {
	res := d.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		UpdateColumns(map[string]interface{}{
			"last_message":    gorm.Expr("CASE WHEN last_message_at IS NULL OR last_message_at < ? THEN ? ELSE last_message END", at, preview),
			"last_message_at": gorm.Expr("GREATEST(last_message_at, ?)", at),
			"updated_at":      gorm.Expr("GREATEST(updated_at, ?)", at),
			"unread_count":    gorm.Expr("unread_count + 1"),
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

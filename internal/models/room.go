package models

import (
	"time"

	"github.com/google/uuid"
)

// residentNamespace seeds deterministic room ids. Changing it orphans every existing room.
var residentNamespace = uuid.MustParse("6f1c8f52-5d0e-4f43-9a3e-1b8d2a7c4e90")

type ChatRoom struct {
	ID            string `gorm:"type:text;primaryKey"`
	ResidentID    string `gorm:"type:text;not null;uniqueIndex"`
	ResidentName  string `gorm:"not null"`
	AdminID       *string
	AdminName     *string
	LastMessage   *string
	LastMessageAt *time.Time
	UnreadCount   int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false;index"`
}

// RoomIDFor returns the room id owned by residentID. It is a pure function of its input.
func RoomIDFor(residentID string) string {
	return uuid.NewSHA1(residentNamespace, []byte(residentID)).String()
}

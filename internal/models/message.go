package models

import (
	"time"
)

type Role string

const (
	RoleResident Role = "resident"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleResident || r == RoleAdmin
}

type ChatMessage struct {
	ID         string    `gorm:"type:text;primaryKey"`
	ChatID     string    `gorm:"type:text;not null;index:idx_chat_messages_order,priority:1"`
	SenderID   string    `gorm:"type:text;not null"`
	SenderName string    `gorm:"not null"`
	SenderRole Role      `gorm:"type:text;not null"`
	Message    string    `gorm:"not null"`
	Timestamp  time.Time `gorm:"not null;index:idx_chat_messages_order,priority:2"`
	Read       bool      `gorm:"not null"`
	ReadAt     *time.Time
}

// Before reports whether m sorts before other in the room order (timestamp, id).
func (m ChatMessage) Before(other ChatMessage) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return m.ID < other.ID
}

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationUnitAssigned NotificationType = "unit_assigned"
	NotificationKeyPickup    NotificationType = "key_pickup"
	NotificationPayment      NotificationType = "payment"
	NotificationTicket       NotificationType = "ticket"
	NotificationAnnouncement NotificationType = "announcement"
	NotificationSystem       NotificationType = "system"
)

type Notification struct {
	ID        string           `gorm:"type:text;primaryKey"`
	UserID    string           `gorm:"type:text;not null;index:idx_notifications_feed,priority:1"`
	Type      NotificationType `gorm:"type:text;not null"`
	Title     string           `gorm:"not null"`
	Message   string           `gorm:"not null"`
	Data      json.RawMessage  `gorm:"type:jsonb"`
	Read      bool             `gorm:"not null"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime:false;index:idx_notifications_feed,priority:2"`
}

// Payload decodes Data into the variant selected by Type.
func (n Notification) Payload() (Payload, error) {
	p, err := newPayload(n.Type)
	if err != nil {
		return nil, err
	}
	if len(n.Data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(n.Data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", n.Type, err)
	}
	return p, nil
}

// Payload is the typed body of a notification. Each variant owns one NotificationType.
type Payload interface {
	Type() NotificationType
}

type UnitAssigned struct {
	UnitID   string `json:"unit_id" validate:"required"`
	UnitName string `json:"unit_name,omitempty"`
	Tower    string `json:"tower,omitempty"`
}

func (*UnitAssigned) Type() NotificationType { return NotificationUnitAssigned }

type KeyPickup struct {
	Unit     string     `json:"unit" validate:"required"`
	Location string     `json:"location,omitempty"`
	PickupAt *time.Time `json:"pickup_at,omitempty"`
}

func (*KeyPickup) Type() NotificationType { return NotificationKeyPickup }

type Payment struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"gte=0"`
	Currency  string `json:"currency,omitempty" validate:"omitempty,len=3"`
	Status    string `json:"status" validate:"required,oneof=pending confirmed failed refunded"`
}

func (*Payment) Type() NotificationType { return NotificationPayment }

type Ticket struct {
	TicketID string `json:"ticket_id" validate:"required"`
	Status   string `json:"status" validate:"required"`
}

func (*Ticket) Type() NotificationType { return NotificationTicket }

type Announcement struct {
	AnnouncementID string `json:"announcement_id,omitempty"`
	Link           string `json:"link,omitempty" validate:"omitempty,url"`
}

func (*Announcement) Type() NotificationType { return NotificationAnnouncement }

type System struct {
	Code string `json:"code,omitempty"`
}

func (*System) Type() NotificationType { return NotificationSystem }

func newPayload(t NotificationType) (Payload, error) {
	switch t {
	case NotificationUnitAssigned:
		return &UnitAssigned{}, nil
	case NotificationKeyPickup:
		return &KeyPickup{}, nil
	case NotificationPayment:
		return &Payment{}, nil
	case NotificationTicket:
		return &Ticket{}, nil
	case NotificationAnnouncement:
		return &Announcement{}, nil
	case NotificationSystem:
		return &System{}, nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}
}

// DecodePayload builds the variant for t from raw JSON, as received from a caller.
func DecodePayload(t NotificationType, raw json.RawMessage) (Payload, error) {
	return Notification{Type: t, Data: raw}.Payload()
}

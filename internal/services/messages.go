package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/residence-chat/internal/database"
	"github.com/thereayou/residence-chat/internal/delivery"
	"github.com/thereayou/residence-chat/internal/models"
	"go.uber.org/zap"
)

const previewLength = 100

type Sender struct {
	ID   string
	Name string
	Role models.Role
}

// MessageLog is the append-only message history of every room plus its live snapshots.
type MessageLog struct {
	rooms     RoomStore
	messages  MessageStore
	engine    *delivery.Engine[[]models.ChatMessage]
	clock     *Clock
	retry     RetryPolicy
	maxLength int
	log       *zap.Logger
}

func NewMessageLog(rooms RoomStore, messages MessageStore, clock *Clock, retry RetryPolicy, maxLength int, log *zap.Logger) *MessageLog {
	l := &MessageLog{
		rooms:     rooms,
		messages:  messages,
		clock:     clock,
		retry:     retry,
		maxLength: maxLength,
		log:       log.Named("messages"),
	}
	l.engine = delivery.NewEngine[[]models.ChatMessage]("rooms", l.snapshot, l.log)
	return l
}

// Engine exposes the room stream, e.g. to bridge it across instances.
func (l *MessageLog) Engine() *delivery.Engine[[]models.ChatMessage] { return l.engine }

// Send appends body to roomID and pushes the new log to the room's subscribers.
func (l *MessageLog) Send(ctx context.Context, roomID string, sender Sender, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if l.maxLength > 0 && utf8.RuneCountInString(body) > l.maxLength {
		return nil, ErrMessageTooLong
	}
	if sender.ID == "" || !sender.Role.Valid() {
		return nil, ErrInvalidSender
	}
	if err := l.ensureRoom(ctx, roomID); err != nil {
		return nil, err
	}

	message := &models.ChatMessage{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ChatID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Message:    body,
		Timestamp:  l.clock.Next(),
	}

	err := l.retry.Do(ctx, func() error {
		err := l.messages.AppendMessage(ctx, message)
		// The id is fresh, so a conflict means an earlier attempt already landed.
		if errors.Is(err, database.ErrWriteConflict) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, storeError(err, nil, ErrStoreUnavailable)
	}

	preview := truncate(body, previewLength)
	if err := l.retry.Do(ctx, func() error {
		return l.rooms.UpdateRoomSummary(ctx, roomID, preview, message.Timestamp)
	}); err != nil {
		l.log.Warn("room summary update failed, retrying in background", zap.String("room_id", roomID), zap.Error(err))
		go l.repairSummary(roomID, preview, message.Timestamp)
	}

	l.publish(ctx, roomID)
	return message, nil
}

// Subscribe delivers the ordered log of roomID now and after every change.
func (l *MessageLog) Subscribe(ctx context.Context, roomID string, onUpdate func([]models.ChatMessage)) (*delivery.Subscription, error) {
	if err := l.ensureRoom(ctx, roomID); err != nil {
		return nil, err
	}
	sub, err := l.engine.Register(ctx, roomID, onUpdate)
	if err != nil {
		return nil, storeError(err, nil, ErrStoreUnavailable)
	}
	return sub, nil
}

// Messages returns the current ordered log of roomID.
func (l *MessageLog) Messages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	if err := l.ensureRoom(ctx, roomID); err != nil {
		return nil, err
	}
	messages, err := l.snapshot(ctx, roomID)
	if err != nil {
		return nil, storeError(err, nil, ErrStoreUnavailable)
	}
	return messages, nil
}

func (l *MessageLog) publish(ctx context.Context, roomID string) {
	if err := l.engine.Publish(ctx, roomID); err != nil {
		l.log.Warn("publish room snapshot failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (l *MessageLog) snapshot(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := l.retry.Do(ctx, func() error {
		var err error
		messages, err = l.messages.RoomMessages(ctx, roomID)
		return err
	})
	return messages, err
}

func (l *MessageLog) ensureRoom(ctx context.Context, roomID string) error {
	err := l.retry.Do(ctx, func() error {
		_, err := l.rooms.GetRoom(ctx, roomID)
		return err
	})
	return storeError(err, ErrRoomNotFound, ErrStoreUnavailable)
}

func (l *MessageLog) repairSummary(roomID, preview string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	policy := RetryPolicy{Attempts: 10, Backoff: l.retry.Backoff + time.Second}
	err := policy.Do(ctx, func() error {
		return l.rooms.UpdateRoomSummary(ctx, roomID, preview, at)
	})
	if err != nil {
		l.log.Error("room summary left stale", zap.String("room_id", roomID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

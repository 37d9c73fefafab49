package services

import (
	"context"

	"github.com/samber/lo"
	"github.com/thereayou/residence-chat/internal/models"
	"go.uber.org/zap"
)

// ReadTracker marks messages read on behalf of a viewer.
type ReadTracker struct {
	messages MessageStore
	log      *MessageLog
	clock    *Clock
	retry    RetryPolicy
	logger   *zap.Logger
}

func NewReadTracker(messages MessageStore, log *MessageLog, clock *Clock, retry RetryPolicy, logger *zap.Logger) *ReadTracker {
	return &ReadTracker{
		messages: messages,
		log:      log,
		clock:    clock,
		retry:    retry,
		logger:   logger.Named("receipts"),
	}
}

// MarkRead marks the messages of delivered that viewerID did not send and has not read.
// Only messages present in delivered are considered, so nothing the viewer has not
// received can be marked. It returns how many messages changed state.
func (t *ReadTracker) MarkRead(ctx context.Context, roomID, viewerID string, delivered []models.ChatMessage) (int, error) {
	ids := lo.FilterMap(delivered, func(m models.ChatMessage, _ int) (string, bool) {
		return m.ID, m.ChatID == roomID && m.SenderID != viewerID && !m.Read
	})
	if len(ids) == 0 {
		return 0, nil
	}

	var marked int64
	err := t.retry.Do(ctx, func() error {
		var err error
		marked, err = t.messages.MarkMessagesRead(ctx, roomID, viewerID, ids, t.clock.Next())
		return err
	})
	if err != nil {
		return 0, storeError(err, nil, ErrStoreUnavailable)
	}
	if marked > 0 {
		t.logger.Debug("messages marked read",
			zap.String("room_id", roomID), zap.String("viewer_id", viewerID), zap.Int64("count", marked))
		t.log.publish(ctx, roomID)
	}
	return int(marked), nil
}

// MarkReadThrough marks every qualifying message up to and including lastSeenID, the
// last message the viewer's client reports having rendered.
func (t *ReadTracker) MarkReadThrough(ctx context.Context, roomID, viewerID, lastSeenID string) (int, error) {
	if lastSeenID == "" {
		return 0, nil
	}
	messages, err := t.log.Messages(ctx, roomID)
	if err != nil {
		return 0, err
	}
	_, idx, found := lo.FindIndexOf(messages, func(m models.ChatMessage) bool { return m.ID == lastSeenID })
	if !found {
		return 0, ErrMessageNotFound
	}
	return t.MarkRead(ctx, roomID, viewerID, messages[:idx+1])
}

// Observe wraps deliver so every snapshot handed to the viewer is then marked read.
// A snapshot that deliver fails to hand over is not marked.
func (t *ReadTracker) Observe(ctx context.Context, roomID, viewerID string, deliver func([]models.ChatMessage) error) func([]models.ChatMessage) {
	return func(messages []models.ChatMessage) {
		if err := deliver(messages); err != nil {
			t.logger.Debug("snapshot not delivered, skipping mark read",
				zap.String("room_id", roomID), zap.String("viewer_id", viewerID), zap.Error(err))
			return
		}
		if _, err := t.MarkRead(ctx, roomID, viewerID, messages); err != nil {
			t.logger.Warn("auto mark read failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/thereayou/residence-chat/internal/database"
	"github.com/thereayou/residence-chat/internal/delivery"
	"github.com/thereayou/residence-chat/internal/models"
	"go.uber.org/zap"
)

const DefaultFeedPageSize = 10

// Feed is one snapshot of a user's notification feed: the most recent page, newest
// first, and the unread total over the whole feed.
type Feed struct {
	Items  []models.Notification
	Unread int64
}

type NotificationFeed struct {
	store    NotificationStore
	engine   *delivery.Engine[Feed]
	pageSize int
	clock    *Clock
	retry    RetryPolicy
	validate *validator.Validate
	log      *zap.Logger
}

func NewNotificationFeed(store NotificationStore, clock *Clock, retry RetryPolicy, pageSize int, log *zap.Logger) *NotificationFeed {
	if pageSize <= 0 {
		pageSize = DefaultFeedPageSize
	}
	f := &NotificationFeed{
		store:    store,
		pageSize: pageSize,
		clock:    clock,
		retry:    retry,
		validate: validator.New(),
		log:      log.Named("notifications"),
	}
	f.engine = delivery.NewEngine[Feed]("feeds", f.load, f.log)
	return f
}

func (f *NotificationFeed) Engine() *delivery.Engine[Feed] { return f.engine }

// Notify appends a notification to userID's feed and pushes the feed to its subscribers.
func (f *NotificationFeed) Notify(ctx context.Context, userID, title, message string, payload models.Payload) (*models.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRecipient
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidPayload)
	}
	if err := f.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	notification := &models.Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Type:      payload.Type(),
		Title:     strings.TrimSpace(title),
		Message:   message,
		Data:      data,
		CreatedAt: f.clock.Next(),
	}
	err = f.retry.Do(ctx, func() error {
		err := f.store.SaveNotification(ctx, notification)
		if errors.Is(err, database.ErrWriteConflict) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, storeError(err, nil, ErrStoreUnavailable)
	}

	f.log.Info("notification queued",
		zap.String("user_id", userID), zap.String("type", string(notification.Type)), zap.String("id", notification.ID))
	f.publish(ctx, userID)
	return notification, nil
}

// SubscribeFeed delivers userID's feed now and after every change.
func (f *NotificationFeed) SubscribeFeed(ctx context.Context, userID string, onUpdate func(Feed)) (*delivery.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRecipient
	}
	sub, err := f.engine.Register(ctx, userID, onUpdate)
	if err != nil {
		return nil, storeError(err, nil, ErrStoreUnavailable)
	}
	return sub, nil
}

func (f *NotificationFeed) Feed(ctx context.Context, userID string) (Feed, error) {
	feed, err := f.load(ctx, userID)
	if err != nil {
		return Feed{}, storeError(err, nil, ErrStoreUnavailable)
	}
	return feed, nil
}

// MarkRead marks one notification of userID read. Marking a read notification again is a no-op.
func (f *NotificationFeed) MarkRead(ctx context.Context, userID, notificationID string) error {
	var changed bool
	err := f.retry.Do(ctx, func() error {
		var err error
		changed, err = f.store.MarkNotificationRead(ctx, userID, notificationID, f.clock.Next())
		return err
	})
	if err != nil {
		return storeError(err, ErrNotificationNotFound, ErrStoreUnavailable)
	}
	if changed {
		f.publish(ctx, userID)
	}
	return nil
}

// MarkAllRead marks every unread notification of userID read and returns how many changed.
func (f *NotificationFeed) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var marked int64
	err := f.retry.Do(ctx, func() error {
		var err error
		marked, err = f.store.MarkAllNotificationsRead(ctx, userID, f.clock.Next())
		return err
	})
	if err != nil {
		return 0, storeError(err, nil, ErrStoreUnavailable)
	}
	if marked > 0 {
		f.publish(ctx, userID)
	}
	return marked, nil
}

func (f *NotificationFeed) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := f.retry.Do(ctx, func() error {
		var err error
		count, err = f.store.CountUnreadNotifications(ctx, userID)
		return err
	})
	return count, storeError(err, nil, ErrStoreUnavailable)
}

func (f *NotificationFeed) load(ctx context.Context, userID string) (Feed, error) {
	var feed Feed
	err := f.retry.Do(ctx, func() error {
		items, err := f.store.RecentNotifications(ctx, userID, f.pageSize)
		if err != nil {
			return err
		}
		unread, err := f.store.CountUnreadNotifications(ctx, userID)
		if err != nil {
			return err
		}
		feed = Feed{Items: items, Unread: unread}
		return nil
	})
	return feed, err
}

func (f *NotificationFeed) publish(ctx context.Context, userID string) {
	if err := f.engine.Publish(ctx, userID); err != nil {
		f.log.Warn("publish feed snapshot failed", zap.String("user_id", userID), zap.Error(err))
	}
}

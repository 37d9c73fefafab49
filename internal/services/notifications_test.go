package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thereayou/residence-chat/internal/models"
)

func feedHasItems(n int) func(Feed) bool {
	return func(f Feed) bool { return len(f.Items) == n }
}

func TestNotify_KeyPickupThenMarkAllRead(t *testing.T) {
	req := require.New(t)
	s := newTestServices(t)
	ctx := context.Background()

	// Given a key pickup notification for U
	_, err := s.feed.Notify(ctx, "U", "Key ready", "Your key is at the front desk", &models.KeyPickup{Unit: "12B", Location: "Front desk"})
	req.NoError(err)

	// When U subscribes to the feed
	got := &collector[Feed]{}
	sub, err := s.feed.SubscribeFeed(ctx, "U", got.add)
	req.NoError(err)
	defer sub.Cancel()

	// Then the first item is the unread key pickup
	feed := got.eventually(t, feedHasItems(1))
	req.Equal(models.NotificationKeyPickup, feed.Items[0].Type)
	req.False(feed.Items[0].Read)
	req.EqualValues(1, feed.Unread)

	payload, err := feed.Items[0].Payload()
	req.NoError(err)
	req.Equal("12B", payload.(*models.KeyPickup).Unit)

	// And after marking everything read the unread count is zero
	marked, err := s.feed.MarkAllRead(ctx, "U")
	req.NoError(err)
	req.EqualValues(1, marked)
	got.eventually(t, func(f Feed) bool { return f.Unread == 0 && f.Items[0].Read })

	unread, err := s.feed.UnreadCount(ctx, "U")
	req.NoError(err)
	req.Zero(unread)
}

func TestNotify_Validation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		title   string
		payload models.Payload
		want    error
	}{
		{"empty recipient", "", "t", &models.System{}, ErrInvalidRecipient},
		{"blank recipient", "   ", "t", &models.System{}, ErrInvalidRecipient},
		{"missing payload", "U", "t", nil, ErrInvalidPayload},
		{"missing title", "U", "", &models.System{}, ErrInvalidPayload},
		{"payment without amount fields", "U", "Invoice", &models.Payment{}, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.feed.Notify(ctx, tt.userID, tt.title, "body", tt.payload)
			require.ErrorIs(t, err, tt.want)
		})
	}

	feed, err := s.feed.Feed(ctx, "U")
	require.NoError(t, err)
	require.Empty(t, feed.Items)
}

func TestFeed_NewestFirstAndCapped(t *testing.T) {
	req := require.New(t)
	s := newTestServices(t)
	ctx := context.Background()

	for i := 0; i < DefaultFeedPageSize+2; i++ {
		_, err := s.feed.Notify(ctx, "U", fmt.Sprintf("n%d", i), "", &models.Announcement{AnnouncementID: "water-maintenance"})
		req.NoError(err)
	}

	feed, err := s.feed.Feed(ctx, "U")
	req.NoError(err)
	req.Len(feed.Items, DefaultFeedPageSize)
	req.EqualValues(DefaultFeedPageSize+2, feed.Unread)
	req.Equal(fmt.Sprintf("n%d", DefaultFeedPageSize+1), feed.Items[0].Title)
	for i := 1; i < len(feed.Items); i++ {
		req.True(feed.Items[i-1].CreatedAt.After(feed.Items[i].CreatedAt))
	}
}

func TestMarkNotificationRead(t *testing.T) {
	req := require.New(t)
	s := newTestServices(t)
	ctx := context.Background()

	n, err := s.feed.Notify(ctx, "U", "Ticket updated", "", &models.System{})
	req.NoError(err)

	req.NoError(s.feed.MarkRead(ctx, "U", n.ID))
	req.NoError(s.feed.MarkRead(ctx, "U", n.ID))

	unread, err := s.feed.UnreadCount(ctx, "U")
	req.NoError(err)
	req.Zero(unread)

	// Another user cannot see or mark it
	req.ErrorIs(s.feed.MarkRead(ctx, "V", n.ID), ErrNotificationNotFound)
	req.ErrorIs(s.feed.MarkRead(ctx, "U", "missing"), ErrNotificationNotFound)
}

func TestSubscribeFeed_OnlyOwnNotifications(t *testing.T) {
	req := require.New(t)
	s := newTestServices(t)
	ctx := context.Background()

	got := &collector[Feed]{}
	sub, err := s.feed.SubscribeFeed(ctx, "U", got.add)
	req.NoError(err)
	got.eventually(t, feedHasItems(0))

	_, err = s.feed.Notify(ctx, "V", "Not yours", "", &models.System{})
	req.NoError(err)
	_, err = s.feed.Notify(ctx, "U", "Yours", "", &models.System{})
	req.NoError(err)

	feed := got.eventually(t, feedHasItems(1))
	req.Equal("Yours", feed.Items[0].Title)

	// After cancel no more callbacks arrive
	sub.Cancel()
	before := got.count()
	_, err = s.feed.Notify(ctx, "U", "Late", "", &models.System{})
	req.NoError(err)
	time.Sleep(50 * time.Millisecond)
	req.Equal(before, got.count())
}

func TestSubscribeFeed_EmptyUser(t *testing.T) {
	s := newTestServices(t)
	_, err := s.feed.SubscribeFeed(context.Background(), "", func(Feed) {})
	require.ErrorIs(t, err, ErrInvalidRecipient)
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thereayou/residence-chat/internal/database"
	"github.com/thereayou/residence-chat/internal/models"
	"go.uber.org/zap"
)

type testServices struct {
	store    *database.MemoryDatabase
	registry *RoomRegistry
	log      *MessageLog
	tracker  *ReadTracker
	feed     *NotificationFeed
}

var testRetry = RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

func newTestServices(t *testing.T) testServices {
	t.Helper()
	store := database.NewMemoryDatabase()
	clock := NewClock()
	log := zap.NewNop()

	messageLog := NewMessageLog(store, store, clock, testRetry, 2000, log)
	feed := NewNotificationFeed(store, clock, testRetry, DefaultFeedPageSize, log)
	t.Cleanup(func() {
		messageLog.Engine().Close()
		feed.Engine().Close()
	})
	return testServices{
		store:    store,
		registry: NewRoomRegistry(store, store, clock, testRetry, log),
		log:      messageLog,
		tracker:  NewReadTracker(store, messageLog, clock, testRetry, log),
		feed:     feed,
	}
}

var (
	alice = Sender{ID: "res-1", Name: "Alice", Role: models.RoleResident}
	admin = Sender{ID: "adm-1", Name: "Budi", Role: models.RoleAdmin}
)

// collector records every snapshot a subscription receives.
type collector[T any] struct {
	mu    sync.Mutex
	views []T
}

func (c *collector[T]) add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = append(c.views, v)
}

func (c *collector[T]) all() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.views))
	copy(out, c.views)
	return out
}

func (c *collector[T]) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}

// eventually waits until the latest snapshot satisfies pred.
func (c *collector[T]) eventually(t *testing.T, pred func(T) bool) T {
	t.Helper()
	var last T
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(c.views) == 0 {
			return false
		}
		last = c.views[len(c.views)-1]
		return pred(last)
	}, time.Second, 5*time.Millisecond)
	return last
}

func hasLen[T any](n int) func([]T) bool {
	return func(v []T) bool { return len(v) == n }
}

func mustRoom(t *testing.T, s testServices, residentID, name string) string {
	t.Helper()
	roomID, err := s.registry.GetOrCreateRoom(context.Background(), residentID, name)
	require.NoError(t, err)
	return roomID
}

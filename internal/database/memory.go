package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thereayou/residence-chat/internal/models"
)

// MemoryDatabase keeps the same contract as Database without postgres.
// Used with STORE=memory for local runs and by the service tests.
type MemoryDatabase struct {
	mu sync.RWMutex

	rooms         map[string]models.ChatRoom
	messages      map[string][]models.ChatMessage  // roomID -> log in (timestamp, id) order
	notifications map[string][]models.Notification // userID -> feed in insertion order
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		rooms:         map[string]models.ChatRoom{},
		messages:      map[string][]models.ChatMessage{},
		notifications: map[string][]models.Notification{},
	}
}

func (m *MemoryDatabase) Ping(context.Context) error { return nil }

func (m *MemoryDatabase) CreateRoomIfAbsent(_ context.Context, room *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[room.ID]; ok {
		return ErrWriteConflict
	}
	m.rooms[room.ID] = *room
	return nil
}

func (m *MemoryDatabase) GetRoom(_ context.Context, id string) (*models.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (m *MemoryDatabase) ListRooms(context.Context) ([]models.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]models.ChatRoom, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].UpdatedAt.Equal(rooms[j].UpdatedAt) {
			return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

func (m *MemoryDatabase) AssignAdmin(_ context.Context, roomID, adminID, adminName string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.AdminID = &adminID
	room.AdminName = &adminName
	if at.After(room.UpdatedAt) {
		room.UpdatedAt = at
	}
	m.rooms[roomID] = room
	return nil
}

func (m *MemoryDatabase) UpdateRoomSummary(_ context.Context, roomID, preview string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if room.LastMessageAt == nil || room.LastMessageAt.Before(at) {
		room.LastMessage = &preview
		room.LastMessageAt = &at
	}
	if at.After(room.UpdatedAt) {
		room.UpdatedAt = at
	}
	room.UnreadCount++
	m.rooms[roomID] = room
	return nil
}

func (m *MemoryDatabase) AppendMessage(_ context.Context, message *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.messages[message.ChatID]
	for _, existing := range log {
		if existing.ID == message.ID {
			return ErrWriteConflict
		}
	}
	i := sort.Search(len(log), func(i int) bool { return message.Before(log[i]) })
	log = append(log, models.ChatMessage{})
	copy(log[i+1:], log[i:])
	log[i] = *message
	m.messages[message.ChatID] = log
	return nil
}

func (m *MemoryDatabase) RoomMessages(_ context.Context, roomID string) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log := m.messages[roomID]
	out := make([]models.ChatMessage, len(log))
	copy(out, log)
	return out, nil
}

func (m *MemoryDatabase) CountUnreadMessages(_ context.Context, roomID, viewerID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, msg := range m.messages[roomID] {
		if msg.SenderID != viewerID && !msg.Read {
			count++
		}
	}
	return count, nil
}

func (m *MemoryDatabase) MarkMessagesRead(_ context.Context, roomID, viewerID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var marked int64
	log := m.messages[roomID]
	for i := range log {
		if _, ok := wanted[log[i].ID]; !ok || log[i].SenderID == viewerID || log[i].Read {
			continue
		}
		readAt := at
		log[i].Read = true
		log[i].ReadAt = &readAt
		marked++
	}
	if room, ok := m.rooms[roomID]; ok && marked > 0 {
		room.UnreadCount -= int(marked)
		if room.UnreadCount < 0 {
			room.UnreadCount = 0
		}
		m.rooms[roomID] = room
	}
	return marked, nil
}

func (m *MemoryDatabase) SaveNotification(_ context.Context, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.notifications[notification.UserID] {
		if existing.ID == notification.ID {
			return ErrWriteConflict
		}
	}
	m.notifications[notification.UserID] = append(m.notifications[notification.UserID], *notification)
	return nil
}

func (m *MemoryDatabase) RecentNotifications(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	m.mu.RLock()
	feed := make([]models.Notification, len(m.notifications[userID]))
	copy(feed, m.notifications[userID])
	m.mu.RUnlock()

	sort.SliceStable(feed, func(i, j int) bool {
		if !feed[i].CreatedAt.Equal(feed[j].CreatedAt) {
			return feed[i].CreatedAt.After(feed[j].CreatedAt)
		}
		return feed[i].ID > feed[j].ID
	})
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

func (m *MemoryDatabase) CountUnreadNotifications(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, n := range m.notifications[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MemoryDatabase) MarkNotificationRead(_ context.Context, userID, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	feed := m.notifications[userID]
	for i := range feed {
		if feed[i].ID != id {
			continue
		}
		if feed[i].Read {
			return false, nil
		}
		readAt := at
		feed[i].Read = true
		feed[i].ReadAt = &readAt
		return true, nil
	}
	return false, ErrNotFound
}

func (m *MemoryDatabase) MarkAllNotificationsRead(_ context.Context, userID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var marked int64
	feed := m.notifications[userID]
	for i := range feed {
		if feed[i].Read {
			continue
		}
		readAt := at
		feed[i].Read = true
		feed[i].ReadAt = &readAt
		marked++
	}
	return marked, nil
}

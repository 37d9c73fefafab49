package services

import (
	"context"
	"errors"
	"strings"

	"github.com/thereayou/residence-chat/internal/database"
	"github.com/thereayou/residence-chat/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RoomRegistry owns chat room identity: one room per resident, created on first contact.
type RoomRegistry struct {
	rooms    RoomStore
	messages MessageStore
	clock    *Clock
	retry    RetryPolicy
	log      *zap.Logger

	creating singleflight.Group
}

func NewRoomRegistry(rooms RoomStore, messages MessageStore, clock *Clock, retry RetryPolicy, log *zap.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms:    rooms,
		messages: messages,
		clock:    clock,
		retry:    retry,
		log:      log.Named("rooms"),
	}
}

// GetOrCreateRoom returns the id of residentID's room, creating the room if needed.
// Concurrent callers for the same resident always get the same id and the room is
// written once: the id is derived from residentID and creation is create-if-absent,
// so the loser of a creation race just reads the winner's room.
func (r *RoomRegistry) GetOrCreateRoom(ctx context.Context, residentID, residentName string) (string, error) {
	residentID = strings.TrimSpace(residentID)
	if residentID == "" {
		return "", ErrInvalidResident
	}
	roomID := models.RoomIDFor(residentID)

	_, err, _ := r.creating.Do(roomID, func() (interface{}, error) {
		return nil, r.retry.Do(ctx, func() error {
			return r.ensureRoom(ctx, roomID, residentID, residentName)
		})
	})
	if err != nil {
		return "", storeError(err, nil, ErrRegistryUnavailable)
	}
	return roomID, nil
}

func (r *RoomRegistry) ensureRoom(ctx context.Context, roomID, residentID, residentName string) error {
	_, err := r.rooms.GetRoom(ctx, roomID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	now := r.clock.Next()
	err = r.rooms.CreateRoomIfAbsent(ctx, &models.ChatRoom{
		ID:           roomID,
		ResidentID:   residentID,
		ResidentName: strings.TrimSpace(residentName),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, database.ErrWriteConflict) {
		r.log.Debug("room created concurrently, using existing", zap.String("room_id", roomID))
		return nil
	}
	if err != nil {
		return err
	}
	r.log.Info("room created", zap.String("room_id", roomID), zap.String("resident_id", residentID))
	return nil
}

// ListRooms returns every room, most recently active first.
func (r *RoomRegistry) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.retry.Do(ctx, func() error {
		var err error
		rooms, err = r.rooms.ListRooms(ctx)
		return err
	})
	if err != nil {
		return nil, storeError(err, nil, ErrRegistryUnavailable)
	}
	return rooms, nil
}

func (r *RoomRegistry) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room *models.ChatRoom
	err := r.retry.Do(ctx, func() error {
		var err error
		room, err = r.rooms.GetRoom(ctx, roomID)
		return err
	})
	if err != nil {
		return nil, storeError(err, ErrRoomNotFound, ErrRegistryUnavailable)
	}
	return room, nil
}

// AssignAdmin records the administrator handling a room. The last call wins.
func (r *RoomRegistry) AssignAdmin(ctx context.Context, roomID, adminID, adminName string) error {
	if strings.TrimSpace(adminID) == "" {
		return ErrInvalidSender
	}
	err := r.retry.Do(ctx, func() error {
		return r.rooms.AssignAdmin(ctx, roomID, adminID, adminName, r.clock.Next())
	})
	return storeError(err, ErrRoomNotFound, ErrRegistryUnavailable)
}

// UnreadCount is the number of messages in roomID that viewerID has not read, derived
// from the message flags. ChatRoom.UnreadCount is only a hint.
func (r *RoomRegistry) UnreadCount(ctx context.Context, roomID, viewerID string) (int64, error) {
	var count int64
	err := r.retry.Do(ctx, func() error {
		var err error
		count, err = r.messages.CountUnreadMessages(ctx, roomID, viewerID)
		return err
	})
	if err != nil {
		return 0, storeError(err, nil, ErrStoreUnavailable)
	}
	return count, nil
}

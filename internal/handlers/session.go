package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/thereayou/residence-chat/internal/handlers/dto"
	"github.com/thereayou/residence-chat/internal/middleware"
	"github.com/thereayou/residence-chat/internal/models"
	"github.com/thereayou/residence-chat/internal/services"
	ws "github.com/thereayou/residence-chat/internal/websocket"
	"go.uber.org/zap"
)

const feedKey = "feed"

func roomKey(roomID string) string { return "room:" + roomID }

type readPayload struct {
	LastSeenID string `json:"last_seen_id"`
}

type notificationReadPayload struct {
	NotificationID string `json:"notification_id"`
}

// SessionHandler serves the frames of one websocket connection: it turns
// subscribe frames into live snapshot subscriptions and the rest into service calls.
type SessionHandler struct {
	registry *services.RoomRegistry
	messages *services.MessageLog
	tracker  *services.ReadTracker
	feed     *services.NotificationFeed
	log      *zap.Logger
}

func NewSessionHandler(registry *services.RoomRegistry, messages *services.MessageLog, tracker *services.ReadTracker, feed *services.NotificationFeed, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		messages: messages,
		tracker:  tracker,
		feed:     feed,
		log:      log.Named("session"),
	}
}

func (h *SessionHandler) HandleMessage(client *ws.Client, msg *ws.Message) error {
	err := h.handle(client, msg)
	if err == nil {
		return nil
	}
	if statusFor(err) >= http.StatusInternalServerError {
		h.log.Warn("frame failed", zap.String("type", string(msg.Type)), zap.String("user_id", client.UserID), zap.Error(err))
	}
	return errors.New(rootMessage(err))
}

func (h *SessionHandler) handle(client *ws.Client, msg *ws.Message) error {
	switch msg.Type {
	case ws.TypeRoomSubscribe:
		return h.subscribeRoom(client, msg)
	case ws.TypeRoomUnsubscribe:
		return h.unsubscribeRoom(client, msg)
	case ws.TypeMessage:
		return h.send(client, msg)
	case ws.TypeRead:
		return h.markRead(client, msg)
	case ws.TypeFeedSubscribe:
		return h.subscribeFeed(client, msg)
	case ws.TypeFeedUnsubscribe:
		if !client.Untrack(feedKey) {
			return fmt.Errorf("%w: not subscribed to the feed", ws.ErrInvalidMessage)
		}
		return h.ack(client, msg, nil)
	case ws.TypeNotificationRead:
		var p notificationReadPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if err := h.feed.MarkRead(client.Context(), client.UserID, p.NotificationID); err != nil {
			return err
		}
		return h.ack(client, msg, nil)
	case ws.TypeNotificationReadAll:
		marked, err := h.feed.MarkAllRead(client.Context(), client.UserID)
		if err != nil {
			return err
		}
		return h.ack(client, msg, map[string]int64{"marked": marked})
	default:
		return fmt.Errorf("%w: %q", ws.ErrUnknownType, msg.Type)
	}
}

// subscribeRoom starts pushing room snapshots to the client. Every snapshot the
// client receives is marked read for it. A resident may omit room_id to open
// their own room.
func (h *SessionHandler) subscribeRoom(client *ws.Client, msg *ws.Message) error {
	ctx := client.Context()
	roomID := msg.RoomID
	if roomID == "" {
		if client.Role != models.RoleResident {
			return fmt.Errorf("%w: room_id is required", ws.ErrInvalidMessage)
		}
		var err error
		if roomID, err = h.registry.GetOrCreateRoom(ctx, client.UserID, client.Name); err != nil {
			return err
		}
	}
	if err := h.authorize(client, roomID); err != nil {
		return err
	}
	if client.Tracking(roomKey(roomID)) {
		return h.ack(client, msg, map[string]string{"room_id": roomID})
	}

	push := func(messages []models.ChatMessage) error {
		err := client.Push(ws.TypeRoomSnapshot, roomID, dto.NewMessageList(messages))
		if err != nil && !errors.Is(err, ws.ErrClientClosed) {
			h.log.Warn("push room snapshot failed", zap.String("room_id", roomID), zap.Error(err))
		}
		return err
	}
	sub, err := h.messages.Subscribe(ctx, roomID, h.tracker.Observe(ctx, roomID, client.UserID, push))
	if err != nil {
		return err
	}
	if !client.Track(roomKey(roomID), sub) {
		sub.Cancel()
	}
	return h.ack(client, msg, map[string]string{"room_id": roomID})
}

// unsubscribeRoom stops the room subscription. A resident may omit room_id for
// their own room, as on subscribe.
func (h *SessionHandler) unsubscribeRoom(client *ws.Client, msg *ws.Message) error {
	roomID := msg.RoomID
	if roomID == "" {
		if client.Role != models.RoleResident {
			return fmt.Errorf("%w: room_id is required", ws.ErrInvalidMessage)
		}
		roomID = models.RoomIDFor(client.UserID)
	}
	if !client.Untrack(roomKey(roomID)) {
		return fmt.Errorf("%w: not subscribed to room %s", ws.ErrInvalidMessage, roomID)
	}
	return h.ack(client, msg, map[string]string{"room_id": roomID})
}

func (h *SessionHandler) send(client *ws.Client, msg *ws.Message) error {
	var req dto.SendMessageRequest
	if err := decode(msg, &req); err != nil {
		return err
	}
	if err := h.authorize(client, msg.RoomID); err != nil {
		return err
	}

	sent, err := h.messages.Send(client.Context(), msg.RoomID, senderOf(client), req.Content)
	if err != nil {
		return err
	}
	return h.ack(client, msg, dto.NewMessageResponse(*sent))
}

func (h *SessionHandler) markRead(client *ws.Client, msg *ws.Message) error {
	var p readPayload
	if err := decode(msg, &p); err != nil {
		return err
	}
	if err := h.authorize(client, msg.RoomID); err != nil {
		return err
	}

	marked, err := h.tracker.MarkReadThrough(client.Context(), msg.RoomID, client.UserID, p.LastSeenID)
	if err != nil {
		return err
	}
	return h.ack(client, msg, map[string]int{"marked": marked})
}

func (h *SessionHandler) subscribeFeed(client *ws.Client, msg *ws.Message) error {
	if client.Tracking(feedKey) {
		return h.ack(client, msg, nil)
	}

	sub, err := h.feed.SubscribeFeed(client.Context(), client.UserID, func(feed services.Feed) {
		if err := client.Push(ws.TypeFeedSnapshot, "", dto.NewFeedResponse(feed)); err != nil && !errors.Is(err, ws.ErrClientClosed) {
			h.log.Warn("push feed snapshot failed", zap.String("user_id", client.UserID), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	if !client.Track(feedKey, sub) {
		sub.Cancel()
	}
	return h.ack(client, msg, nil)
}

func (h *SessionHandler) authorize(client *ws.Client, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room_id is required", ws.ErrInvalidMessage)
	}
	room, err := h.registry.GetRoom(client.Context(), roomID)
	if err != nil {
		return err
	}
	return canAccess(middleware.Identity{UserID: client.UserID, Role: client.Role}, room)
}

func (h *SessionHandler) ack(client *ws.Client, msg *ws.Message, data interface{}) error {
	if msg.RequestID == "" {
		return nil
	}
	return client.TrySend(ws.TypeAck, msg.RequestID, msg.RoomID, data)
}

func decode(msg *ws.Message, v interface{}) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: missing data", ws.ErrInvalidMessage)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ws.ErrInvalidMessage, err)
	}
	return nil
}

func senderOf(client *ws.Client) services.Sender {
	return services.Sender{ID: client.UserID, Name: client.Name, Role: client.Role}
}

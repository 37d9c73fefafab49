package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/residence-chat/internal/delivery"
	"github.com/thereayou/residence-chat/internal/models"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ClientMessageHandler handles every frame the client sends except pings.
type ClientMessageHandler interface {
	HandleMessage(client *Client, msg *Message) error
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, name string, role models.Role) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Role:   role,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		Hub:    hub,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]*delivery.Subscription),
	}
}

// Context is cancelled when the connection goes away.
func (c *Client) Context() context.Context { return c.ctx }

func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read failed", zap.String("user_id", c.UserID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case TypePong:
			continue
		case TypePing:
			_ = c.TrySend(TypePong, msg.RequestID, "", nil)
			continue
		}

		if err := handler.HandleMessage(c, &msg); err != nil {
			c.Hub.log.Debug("frame rejected",
				zap.String("user_id", c.UserID), zap.String("type", string(msg.Type)), zap.Error(err))
			c.SendError(msg.RequestID, err)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.Unregister(c)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.Unregister(c)
				return
			}
		}
	}
}

// Push queues a frame, waiting for room in the queue. Snapshot callbacks use it:
// while they wait, newer snapshots collapse in the subscription's mailbox.
func (c *Client) Push(msgType MessageType, roomID string, data interface{}) error {
	if c.ctx.Err() != nil {
		return ErrClientClosed
	}
	frame, err := encode(msgType, "", roomID, data)
	if err != nil {
		return err
	}
	select {
	case c.Send <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	}
}

// TrySend queues a frame without waiting.
func (c *Client) TrySend(msgType MessageType, requestID, roomID string, data interface{}) error {
	if c.ctx.Err() != nil {
		return ErrClientClosed
	}
	frame, err := encode(msgType, requestID, roomID, data)
	if err != nil {
		return err
	}
	select {
	case c.Send <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(requestID string, err error) {
	_ = c.TrySend(TypeError, requestID, "", map[string]string{"error": err.Error()})
}

// Track records sub under key. It returns false, and the caller should cancel
// sub, when key is already tracked or the client is closed.
func (c *Client) Track(key string, sub *delivery.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs == nil || c.ctx.Err() != nil {
		return false
	}
	if _, ok := c.subs[key]; ok {
		return false
	}
	c.subs[key] = sub
	return true
}

func (c *Client) Tracking(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[key]
	return ok
}

// Untrack cancels the subscription under key. It reports whether one was tracked.
func (c *Client) Untrack(key string) bool {
	c.mu.Lock()
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		sub.Cancel()
	}
	return ok
}

func (c *Client) close() {
	c.cancel()

	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

func encode(msgType MessageType, requestID, roomID string, data interface{}) ([]byte, error) {
	msg := Message{
		Type:      msgType,
		RequestID: requestID,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

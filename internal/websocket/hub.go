package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/residence-chat/internal/delivery"
	"github.com/thereayou/residence-chat/internal/models"
	"go.uber.org/zap"
)

type MessageType string

const (
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"

	// Client to server
	TypeRoomSubscribe       MessageType = "room_subscribe"
	TypeRoomUnsubscribe     MessageType = "room_unsubscribe"
	TypeMessage             MessageType = "message"
	TypeRead                MessageType = "read"
	TypeFeedSubscribe       MessageType = "feed_subscribe"
	TypeFeedUnsubscribe     MessageType = "feed_unsubscribe"
	TypeNotificationRead    MessageType = "notification_read"
	TypeNotificationReadAll MessageType = "notification_read_all"

	// Server to client
	TypeRoomSnapshot MessageType = "room_snapshot"
	TypeFeedSnapshot MessageType = "feed_snapshot"
	TypeAck          MessageType = "ack"
	TypeError        MessageType = "error"
)

// Message is one websocket frame in either direction.
type Message struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	RoomID    string          `json:"room_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client is one websocket connection of an authenticated user.
type Client struct {
	ID     uuid.UUID
	UserID string
	Name   string
	Role   models.Role
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*delivery.Subscription
}

// Hub tracks live connections so they can be closed together.
type Hub struct {
	clients map[uuid.UUID]*Client

	// One user may hold several connections
	userClients map[string]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	log *zap.Logger
	mu  sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[string]map[uuid.UUID]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		log:         log.Named("ws"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop closes every connection. The hub cannot be restarted.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.userClients = make(map[string]map[uuid.UUID]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
		client.Conn.Close()
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

// Connections returns the number of open connections of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client

	h.log.Debug("client registered", zap.Stringer("client_id", client.ID), zap.String("user_id", client.UserID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	delete(h.clients, client.ID)
	client.close()

	h.log.Debug("client unregistered", zap.Stringer("client_id", client.ID), zap.String("user_id", client.UserID))
}

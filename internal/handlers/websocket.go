package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/residence-chat/internal/middleware"
	ws "github.com/thereayou/residence-chat/internal/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	session  *SessionHandler
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler accepts handshakes from allowedOrigins; an empty list allows any origin.
// A handshake without an Origin header comes from a non-browser client and is always allowed.
func NewWebSocketHandler(hub *ws.Hub, session *SessionHandler, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:     hub,
		session: session,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, id.UserID, id.Name, id.Role)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.session)
}

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/thereayou/residence-chat/internal/handlers"
	"github.com/thereayou/residence-chat/internal/middleware"
)

type routeHandlers struct {
	auth          *handlers.AuthHandler
	rooms         *handlers.RoomHandler
	messages      *handlers.MessageHandler
	notifications *handlers.NotificationHandler
	websocket     *handlers.WebSocketHandler
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.Log), middleware.RequestLogger(s.Log))
	APIEndpoints(r, s.routes(), s)
	return r
}

func APIEndpoints(r *gin.Engine, h routeHandlers, s *Server) {
	r.GET("/healthz", handlers.Healthz(s.Store))
	r.GET("/ws", middleware.WSAuthMiddleware(s.JWTManager, s.Redis, s.Log), h.websocket.HandleWebSocket)

	api := r.Group("/api/v1", middleware.AuthMiddleware(s.JWTManager, s.Redis, s.Log))
	{
		api.POST("/auth/logout", h.auth.Logout)

		rooms := api.Group("/rooms")
		{
			rooms.POST("", h.rooms.CreateRoom)
			rooms.GET("", middleware.RequireAdmin(), h.rooms.ListRooms)
			rooms.GET("/:id", h.rooms.GetRoom)
			rooms.GET("/:id/messages", h.messages.GetRoomMessages)
			rooms.POST("/:id/messages", h.messages.SendMessage)
			rooms.POST("/:id/read", h.messages.MarkRead)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.notifications.GetFeed)
			notifications.POST("", middleware.RequireAdmin(), h.notifications.Notify)
			notifications.POST("/read-all", h.notifications.MarkAllRead)
			notifications.POST("/:id/read", h.notifications.MarkRead)
		}
	}
}

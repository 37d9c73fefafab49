package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/residence-chat/internal/handlers/dto"
	"github.com/thereayou/residence-chat/internal/middleware"
	"github.com/thereayou/residence-chat/internal/models"
	"github.com/thereayou/residence-chat/internal/services"
)

type RoomHandler struct {
	registry *services.RoomRegistry
}

func NewRoomHandler(registry *services.RoomRegistry) *RoomHandler {
	return &RoomHandler{registry: registry}
}

// CreateRoom opens the caller's room (resident) or a resident's room (admin).
// It is safe to call any number of times.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	ctx := c.Request.Context()

	residentID, residentName := id.UserID, id.Name
	if id.IsAdmin() {
		var req dto.CreateRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		residentID, residentName = req.ResidentID, req.ResidentName
	}

	roomID, err := h.registry.GetOrCreateRoom(ctx, residentID, residentName)
	if err != nil {
		respondError(c, err)
		return
	}
	if id.IsAdmin() {
		if err := h.registry.AssignAdmin(ctx, roomID, id.UserID, id.Name); err != nil {
			respondError(c, err)
			return
		}
	}

	h.respondRoom(c, roomID, id.UserID)
}

// ListRooms returns every room, most recently active first. Admin only.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.registry.ListRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.RoomResponse, len(rooms))
	for i, room := range rooms {
		out[i] = dto.NewRoomResponse(room)
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, ok := authorizeRoom(c, h.registry, c.Param("id"))
	if !ok {
		return
	}
	h.respondRoom(c, room.ID, middleware.CurrentIdentity(c).UserID)
}

// respondRoom writes the room with the unread count as seen by viewerID.
func (h *RoomHandler) respondRoom(c *gin.Context, roomID, viewerID string) {
	ctx := c.Request.Context()
	room, err := h.registry.GetRoom(ctx, roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.registry.UnreadCount(ctx, roomID, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.NewRoomResponse(*room)
	resp.UnreadCount = unread
	c.JSON(http.StatusOK, resp)
}

// authorizeRoom loads roomID and checks the caller may use it: residents only
// their own room, admins any room. It writes the error response itself.
func authorizeRoom(c *gin.Context, registry *services.RoomRegistry, roomID string) (*models.ChatRoom, bool) {
	room, err := registry.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if err := canAccess(middleware.CurrentIdentity(c), room); err != nil {
		respondError(c, err)
		return nil, false
	}
	return room, true
}

func canAccess(id middleware.Identity, room *models.ChatRoom) error {
	if id.IsAdmin() || room.ResidentID == id.UserID {
		return nil
	}
	return services.ErrForbidden
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/residence-chat/internal/services"
	ws "github.com/thereayou/residence-chat/internal/websocket"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrInvalidRecipient),
		errors.Is(err, services.ErrInvalidPayload),
		errors.Is(err, services.ErrInvalidResident),
		errors.Is(err, services.ErrInvalidSender),
		errors.Is(err, ws.ErrInvalidMessage),
		errors.Is(err, ws.ErrUnknownType):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRegistryUnavailable),
		errors.Is(err, services.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, gin.H{"error": rootMessage(err)})
}

// rootMessage hides wrapped store details from callers.
func rootMessage(err error) string {
	for _, sentinel := range []error{services.ErrRegistryUnavailable, services.ErrStoreUnavailable, services.ErrInvalidPayload} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

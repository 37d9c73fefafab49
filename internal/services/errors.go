package services

import (
	"errors"
	"fmt"

	"github.com/thereayou/residence-chat/internal/database"
)

var (
	ErrRegistryUnavailable  = errors.New("room registry unavailable")
	ErrStoreUnavailable     = errors.New("message store unavailable")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrMessageTooLong       = errors.New("message is too long")
	ErrInvalidRecipient     = errors.New("invalid notification recipient")
	ErrInvalidPayload       = errors.New("invalid notification payload")
	ErrInvalidResident      = errors.New("invalid resident")
	ErrInvalidSender        = errors.New("invalid sender")
	ErrRoomNotFound         = errors.New("room not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrForbidden            = errors.New("forbidden")
)

// storeError maps store failures onto the service taxonomy.
func storeError(err error, notFound, unavailable error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, database.ErrUnavailable):
		return fmt.Errorf("%w: %v", unavailable, err)
	default:
		return err
	}
}

package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Entity related errors
	ErrEntityNotFound     = errors.New("entity not found")
	ErrEntityExists       = errors.New("entity already exists")
	ErrUnknownEntityType  = errors.New("unknown entity type")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Trash related errors
	ErrTrashItemNotFound   = errors.New("trash item not found")
	ErrDuplicateEntry      = errors.New("entity already in trash")
	ErrItemAlreadyRestored = errors.New("item already restored")
	ErrNotRestorable       = errors.New("item cannot be restored")
	ErrRestoreConflict     = errors.New("restore target already exists")
	ErrPurgeRejected       = errors.New("item cannot be permanently deleted")
	ErrTrashDisabled       = errors.New("trash is disabled")
	ErrTrashFull           = errors.New("trash is full")

	// Job related errors
	ErrJobNotFound = errors.New("job not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrDuplicateID = errors.New("reservation ID already exists")

	// ErrVersionConflict means a compare-and-swap lost the race: the stored
	// version no longer matches the one the caller loaded.
	ErrVersionConflict = errors.New("reservation version conflict")

	// ErrRoomLockHeld means another request is inside the check-then-write
	// window for the same room.
	ErrRoomLockHeld = errors.New("room lock held by another request")
)

package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrResourceNotFound = errors.New("resource not found")

	ErrFloorNotFound = errors.New("floor not found")

	ErrLockHeld = errors.New("slot lock already held")
)

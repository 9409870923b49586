package admin

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("reservation not found")
	ErrSlotConflict       = errors.New("slot already held by another active reservation")
)

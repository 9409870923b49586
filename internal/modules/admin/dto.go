package admin

import (
	"time"

	"clinicbook/internal/domain"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
}

// ListQuery binds the reservation list query string.
type ListQuery struct {
	Search string `form:"search"`
	Date   string `form:"date"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type ReservationPage struct {
	Reservations []domain.Reservation `json:"reservations"`
	Total        int64                `json:"total"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

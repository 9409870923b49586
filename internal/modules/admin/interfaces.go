package admin

import (
	"context"

	"github.com/gorilla/websocket"

	"clinicbook/internal/domain"
)

type ReservationRepository interface {
	List(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, int64, error)
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus) (*domain.Reservation, error)
	UpdateNotes(ctx context.Context, id, notes string) (*domain.Reservation, error)
	Stats(ctx context.Context, today string) (*domain.ReservationStats, error)
}

// AvailabilityInvalidator drops cached availability after a status change.
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, date string) error
}

type EventPublisher interface {
	ReservationUpdated(r *domain.Reservation)
}

// LiveFeed streams reservation events over an upgraded websocket.
type LiveFeed interface {
	ServeWS(conn *websocket.Conn)
}

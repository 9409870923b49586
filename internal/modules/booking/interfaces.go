package booking

import (
	"context"

	"clinicbook/internal/domain"
)

// ReservationStore is the subset of the reservations table the booking flow uses.
type ReservationStore interface {
	Insert(ctx context.Context, r *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	ListActiveTimes(ctx context.Context, date string, limit int) ([]string, error)
}

// AvailabilityCache is an optional read-through cache keyed by calendar date.
// Set only stores slots while the date's version still equals version, so a
// lookup that read the store before an Invalidate cannot repopulate it.
type AvailabilityCache interface {
	Get(ctx context.Context, date string) ([]domain.TimeSlot, bool, error)
	Version(ctx context.Context, date string) (int64, error)
	Set(ctx context.Context, date string, version int64, slots []domain.TimeSlot) error
	Invalidate(ctx context.Context, date string) error
}

// SlotResolver is what a booking session needs from the availability resolver.
type SlotResolver interface {
	Resolve(ctx context.Context, date string) (Availability, error)
}

// ReservationCreator is what a booking session needs from the reservation writer.
type ReservationCreator interface {
	CreateReservation(ctx context.Context, in CreateReservationInput) (*domain.Reservation, error)
}

package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"clinicbook/internal/domain"
)

// AvailabilityFallback builds the slot list served when the store cannot be
// read. It must return one entry per label, in order.
type AvailabilityFallback interface {
	Slots(date string, labels []string) []domain.TimeSlot
}

// ClosedFallback marks every slot unavailable.
type ClosedFallback struct{}

func (ClosedFallback) Slots(_ string, labels []string) []domain.TimeSlot {
	return fillSlots(labels, func(int) bool { return false })
}

// OpenFallback marks every slot available.
type OpenFallback struct{}

func (OpenFallback) Slots(_ string, labels []string) []domain.TimeSlot {
	return fillSlots(labels, func(int) bool { return true })
}

// AlternateFallback blocks every other slot, phased by the day of month, so
// the same date always yields the same pattern.
type AlternateFallback struct{}

func (AlternateFallback) Slots(date string, labels []string) []domain.TimeSlot {
	day := 0
	if t, err := time.Parse(domain.DateLayout, date); err == nil {
		day = t.Day()
	}
	return fillSlots(labels, func(i int) bool { return i%2 != day%2 })
}

func fillSlots(labels []string, available func(i int) bool) []domain.TimeSlot {
	out := make([]domain.TimeSlot, len(labels))
	for i, l := range labels {
		out[i] = domain.TimeSlot{Time: l, Available: available(i)}
	}
	return out
}

// FallbackFor maps an AVAILABILITY_FALLBACK mode to its policy.
func FallbackFor(mode string) (AvailabilityFallback, error) {
	switch mode {
	case "", "closed":
		return ClosedFallback{}, nil
	case "open":
		return OpenFallback{}, nil
	case "alternate":
		return AlternateFallback{}, nil
	}
	return nil, fmt.Errorf("unknown availability fallback %q", mode)
}

// ReservationFallback produces a record when the store rejected every attempt
// for a transport reason. Nil disables the degraded path.
type ReservationFallback interface {
	Reserve(r domain.Reservation) *domain.Reservation
}

// LocalReservations synthesizes unpersisted records with a "local-" id.
type LocalReservations struct {
	Now func() time.Time
}

func (l LocalReservations) Reserve(r domain.Reservation) *domain.Reservation {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	r.ID = "local-" + uuid.NewString()
	r.CreatedAt = now().UTC()
	r.Degraded = true
	return &r
}

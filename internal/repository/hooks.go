package repository

import (
	"gorm.io/gorm"

	"clinicbook/internal/domain"
)

const createdCallback = "clinicbook:reservation_created"

// ReservationSink receives reservations right after the store accepted them.
type ReservationSink interface {
	ReservationCreated(r *domain.Reservation)
}

// RegisterChangeFeed attaches sink to successful reservation inserts on db.
// It runs after the insert's own transaction commits.
func RegisterChangeFeed(db *gorm.DB, sink ReservationSink) error {
	if sink == nil {
		return nil
	}
	return db.Callback().Create().After("gorm:commit_or_rollback_transaction").Register(createdCallback, func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement == nil {
			return
		}
		m, ok := tx.Statement.Dest.(*reservationModel)
		if !ok || m == nil {
			return
		}
		sink.ReservationCreated(toDomainReservation(*m))
	})
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for reservation dates.
const DateLayout = "2006-01-02"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus accepts one of the three reservation statuses.
func ParseStatus(v string) (ReservationStatus, error) {
	s := ReservationStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", v)
	}
	return s, nil
}

// MaxNotesLength bounds free-text notes, in characters.
const MaxNotesLength = 2000

var (
	// ErrDuplicateSlot is returned by the store when an active reservation
	// already holds the same (date, time) pair.
	ErrDuplicateSlot = errors.New("reservation slot already taken")
	// ErrDuplicateID is returned when a reservation with the same id exists.
	ErrDuplicateID = errors.New("reservation id already exists")
	ErrNotFound    = errors.New("reservation not found")
)

type Reservation struct {
	ID           string            `json:"id"`
	PatientName  string            `json:"patient_name"`
	PatientEmail string            `json:"patient_email"`
	PatientPhone string            `json:"patient_phone"`
	Notes        string            `json:"notes,omitempty"`
	Date         string            `json:"appointment_date"`
	Time         string            `json:"appointment_time"`
	Status       ReservationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`

	// Degraded marks a record synthesized locally after the store could not
	// be reached. It was never persisted.
	Degraded bool `json:"-"`
}

// TimeSlot is a catalog label paired with its availability on a queried date.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"is_available"`
}

// ReservationFilter narrows administrative listings. Zero values match all.
type ReservationFilter struct {
	Search string
	Date   string
	Status ReservationStatus
	Limit  int
	Offset int
}

type ReservationStats struct {
	Total     int64 `json:"total"`
	Today     int64 `json:"today"`
	Upcoming  int64 `json:"upcoming"`
	Confirmed int64 `json:"confirmed"`
	Pending   int64 `json:"pending"`
	Cancelled int64 `json:"cancelled"`
}

// CalendarDate reduces t to its calendar date in loc.
func CalendarDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date in loc.
func ParseDate(v string, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.ParseInLocation(DateLayout, v, loc); err == nil {
		return d.Format(DateLayout), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", v)
	}
	return CalendarDate(t, loc), nil
}

package booking

import (
	"fmt"
	"strings"
	"time"

	"clinicbook/internal/catalog"
	"clinicbook/internal/domain"
)

// Window is the range of calendar dates open for booking, evaluated in the
// clinic's timezone.
type Window struct {
	Location    *time.Location
	HorizonDays int
	WorkingDays catalog.WorkingDays
	Now         func() time.Time
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w Window) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// Today is the current calendar date at the clinic.
func (w Window) Today() string {
	return domain.CalendarDate(w.now(), w.location())
}

// Check normalizes raw to YYYY-MM-DD and verifies it lies within
// today..today+HorizonDays and on a working day.
func (w Window) Check(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalidField("appointment_date", "required")
	}
	date, err := domain.ParseDate(raw, w.location())
	if err != nil {
		return "", invalidField("appointment_date", "must be YYYY-MM-DD")
	}

	// Both sides at UTC midnight so the difference is whole days.
	day, _ := time.Parse(domain.DateLayout, date)
	today, _ := time.Parse(domain.DateLayout, w.Today())
	offset := int(day.Sub(today).Hours() / 24)

	switch {
	case offset < 0:
		return "", invalidField("appointment_date", "must not be in the past")
	case offset > w.HorizonDays:
		return "", invalidField("appointment_date", fmt.Sprintf("must be within %d days", w.HorizonDays))
	}
	if len(w.WorkingDays) > 0 && !w.WorkingDays.Allows(day.Weekday()) {
		return "", invalidField("appointment_date", "clinic is closed on "+day.Weekday().String())
	}
	return date, nil
}

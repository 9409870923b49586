package catalog

import (
	"fmt"
	"strings"
	"time"
)

// WorkingDays is the set of weekdays on which the clinic takes bookings.
type WorkingDays map[time.Weekday]bool

// DefaultWorkingDays is Monday through Friday.
func DefaultWorkingDays() WorkingDays {
	return WorkingDays{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWorkingDays reads a comma separated list of weekday names
// ("monday,tuesday" or "mon,tue").
func ParseWorkingDays(csv string) (WorkingDays, error) {
	days := WorkingDays{}
	for _, raw := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		day, ok := lookupWeekday(name)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", raw)
		}
		days[day] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no working days in %q", csv)
	}
	return days, nil
}

func lookupWeekday(name string) (time.Weekday, bool) {
	if d, ok := weekdayNames[name]; ok {
		return d, true
	}
	if len(name) == 3 {
		for full, d := range weekdayNames {
			if strings.HasPrefix(full, name) {
				return d, true
			}
		}
	}
	return 0, false
}

func (w WorkingDays) Allows(day time.Weekday) bool { return w[day] }

// Names lists the working days in week order, starting on Sunday.
func (w WorkingDays) Names() []string {
	out := make([]string, 0, len(w))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w[d] {
			out = append(out, strings.ToLower(d.String()))
		}
	}
	return out
}

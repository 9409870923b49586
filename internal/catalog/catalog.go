package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var defaultSlots = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

var ErrInvalidCatalog = errors.New("invalid time slot catalog")

// Catalog is the ordered list of daily appointment start times.
// Chronological order is also display order.
type Catalog struct {
	slots []string
	index map[string]int
}

// Default returns the clinic's standard morning and afternoon blocks.
func Default() Catalog {
	c, _ := New(defaultSlots...)
	return c
}

func New(labels ...string) (Catalog, error) {
	if len(labels) == 0 {
		return Catalog{}, fmt.Errorf("%w: no slots", ErrInvalidCatalog)
	}
	c := Catalog{
		slots: make([]string, 0, len(labels)),
		index: make(map[string]int, len(labels)),
	}
	var prev time.Time
	for i, raw := range labels {
		label := strings.TrimSpace(raw)
		t, err := time.Parse("15:04", label)
		if err != nil || t.Format("15:04") != label {
			return Catalog{}, fmt.Errorf("%w: slot %q is not HH:MM", ErrInvalidCatalog, raw)
		}
		if i > 0 && !t.After(prev) {
			return Catalog{}, fmt.Errorf("%w: slot %q is out of order or duplicated", ErrInvalidCatalog, label)
		}
		prev = t
		c.index[label] = len(c.slots)
		c.slots = append(c.slots, label)
	}
	return c, nil
}

// Parse builds a catalog from a comma separated list.
func Parse(csv string) (Catalog, error) {
	return New(strings.Split(csv, ",")...)
}

// Slots returns a copy of the labels in catalog order.
func (c Catalog) Slots() []string {
	out := make([]string, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c Catalog) Len() int { return len(c.slots) }

func (c Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}

// Index returns the position of label, or -1.
func (c Catalog) Index(label string) int {
	if i, ok := c.index[label]; ok {
		return i
	}
	return -1
}

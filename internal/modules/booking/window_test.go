package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/catalog"
)

func TestWindow_Check(t *testing.T) {
	w := testWindow()

	date, err := w.Check("2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", date)

	date, err = w.Check("2025-06-12T15:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-12", date)

	for _, bad := range []string{"", "2025-06-09", "2025-07-11", "2025-06-15", "12/06/2025"} {
		_, err := w.Check(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestWindow_UsesClinicTimezone(t *testing.T) {
	// 22:00 UTC on the 10th is already the 11th at UTC+4.
	w := Window{
		Location:    time.FixedZone("GST", 4*60*60),
		HorizonDays: 0,
		Now:         func() time.Time { return time.Date(2025, 6, 10, 22, 0, 0, 0, time.UTC) },
	}

	assert.Equal(t, "2025-06-11", w.Today())
	_, err := w.Check("2025-06-10")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = w.Check("2025-06-11")
	assert.NoError(t, err)
}

func TestWindow_NoWorkingDaysAllowsEveryDay(t *testing.T) {
	w := testWindow()
	w.WorkingDays = nil
	_, err := w.Check("2025-06-14")
	assert.NoError(t, err)

	w.WorkingDays = catalog.WorkingDays{time.Saturday: true}
	_, err = w.Check("2025-06-14")
	assert.NoError(t, err)
	_, err = w.Check("2025-06-13")
	assert.ErrorIs(t, err, ErrValidation)
}

package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"clinicbook/internal/domain"
)

type Step string

const (
	StepDate       Step = "date"
	StepTime       Step = "time"
	StepDetails    Step = "details"
	StepSubmitting Step = "submitting"
	StepSucceeded  Step = "succeeded"
	StepFailed     Step = "failed"
)

// Details are the patient form fields collected before submission.
type Details struct {
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_phone"`
	Notes        string `json:"notes,omitempty"`
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID          string              `json:"id"`
	Step        Step                `json:"step"`
	Date        string              `json:"date,omitempty"`
	Slots       []domain.TimeSlot   `json:"slots,omitempty"`
	Degraded    bool                `json:"degraded"`
	Loading     bool                `json:"loading"`
	Slot        string              `json:"slot,omitempty"`
	Details     Details             `json:"details"`
	Reservation *domain.Reservation `json:"reservation,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Session walks one patient through date, slot and details selection to a
// submitted reservation. Methods are safe for concurrent use; remote calls
// run without holding the lock and their results are dropped when a newer
// selection or Abandon superseded them.
type Session struct {
	id         string
	resolver   SlotResolver
	writer     ReservationCreator
	window     Window
	resetDelay time.Duration
	now        func() time.Time

	mu          sync.Mutex
	step        Step
	date        string
	slots       []domain.TimeSlot
	degraded    bool
	loading     bool
	slot        string
	details     Details
	reservation *domain.Reservation
	lastErr     error
	generation  uint64
	cancel      context.CancelFunc
	resetTimer  *time.Timer
	closed      bool
	lastActive  time.Time
}

type SessionConfig struct {
	Window Window
	// ResetDelay is how long a succeeded session shows its result before
	// returning to date selection.
	ResetDelay time.Duration
	Now        func() time.Time
}

func NewSession(id string, resolver SlotResolver, writer ReservationCreator, cfg SessionConfig) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:         id,
		resolver:   resolver,
		writer:     writer,
		window:     cfg.Window,
		resetDelay: cfg.ResetDelay,
		now:        now,
		step:       StepDate,
		lastActive: now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:       s.id,
		Step:     s.step,
		Date:     s.date,
		Degraded: s.degraded,
		Loading:  s.loading,
		Slot:     s.slot,
		Details:  s.details,
	}
	if s.slots != nil {
		snap.Slots = append([]domain.TimeSlot(nil), s.slots...)
	}
	if s.reservation != nil {
		r := *s.reservation
		snap.Reservation = &r
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// SelectDate picks a date, clears later selections and loads its slots.
// It is refused while a lookup or submission is outstanding.
func (s *Session) SelectDate(ctx context.Context, raw string) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	if s.loading || s.step == StepSubmitting {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionBusy
	}
	date, err := s.window.Check(raw)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}

	s.stopResetLocked()
	s.step = StepTime
	s.date = date
	s.slots = nil
	s.degraded = false
	s.slot = ""
	s.details = Details{}
	s.reservation = nil
	s.lastErr = nil
	s.loading = true
	gen, callCtx := s.beginCallLocked(ctx)
	s.mu.Unlock()

	a, err := s.resolver.Resolve(callCtx, date)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finishCallLocked(gen); err != nil {
		return Snapshot{}, err
	}
	s.loading = false
	if err != nil {
		s.lastErr = err
		return s.snapshotLocked(), err
	}
	s.slots = a.Slots
	s.degraded = a.Degraded
	return s.snapshotLocked(), nil
}

// SelectSlot picks one of the slots the last lookup reported available.
func (s *Session) SelectSlot(label string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardLocked(); err != nil {
		return Snapshot{}, err
	}
	switch s.step {
	case StepTime, StepDetails, StepFailed:
	default:
		return Snapshot{}, ErrInvalidStep
	}
	if !s.isAvailableLocked(label) {
		return Snapshot{}, ErrSlotUnavailable
	}
	s.slot = label
	s.step = StepDetails
	s.lastErr = nil
	s.lastActive = s.now()
	return s.snapshotLocked(), nil
}

// SetDetails records the patient form. Field validation happens on Submit.
func (s *Session) SetDetails(d Details) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardLocked(); err != nil {
		return Snapshot{}, err
	}
	if s.slot == "" || (s.step != StepDetails && s.step != StepFailed) {
		return Snapshot{}, ErrInvalidStep
	}
	s.details = d
	s.step = StepDetails
	s.lastActive = s.now()
	return s.snapshotLocked(), nil
}

// Submit sends the selection to the reservation writer. Only one submission
// may be outstanding. Failures keep every selection so the patient can retry;
// a conflict also marks the slot taken and clears it.
func (s *Session) Submit(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	if s.step == StepSubmitting {
		s.mu.Unlock()
		return Snapshot{}, ErrSubmissionInFlight
	}
	if s.loading {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionBusy
	}
	if s.slot == "" || (s.step != StepDetails && s.step != StepFailed) {
		s.mu.Unlock()
		return Snapshot{}, ErrInvalidStep
	}
	in := CreateReservationInput{
		PatientName:  s.details.PatientName,
		PatientEmail: s.details.PatientEmail,
		PatientPhone: s.details.PatientPhone,
		Notes:        s.details.Notes,
		Date:         s.date,
		Time:         s.slot,
	}
	s.step = StepSubmitting
	s.lastErr = nil
	gen, callCtx := s.beginCallLocked(ctx)
	s.mu.Unlock()

	r, err := s.writer.CreateReservation(callCtx, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.finishCallLocked(gen); err != nil {
		return Snapshot{}, err
	}
	if err != nil {
		s.step = StepFailed
		s.lastErr = err
		if errors.Is(err, ErrSlotAlreadyBooked) {
			s.markTakenLocked(in.Time)
			s.slot = ""
		}
		return s.snapshotLocked(), err
	}
	s.step = StepSucceeded
	s.reservation = r
	snap := s.snapshotLocked()
	s.scheduleResetLocked(gen)
	return snap, nil
}

// Abandon closes the session. In-flight calls are cancelled and whatever
// they return is discarded.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stopResetLocked()
}

func (s *Session) guardLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.step == StepSubmitting:
		return ErrSubmissionInFlight
	case s.loading:
		return ErrSessionBusy
	}
	return nil
}

func (s *Session) beginCallLocked(ctx context.Context) (uint64, context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	callCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.lastActive = s.now()
	return s.generation, callCtx
}

func (s *Session) finishCallLocked(gen uint64) error {
	if s.closed {
		return ErrSessionClosed
	}
	if gen != s.generation {
		return ErrStaleResult
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.lastActive = s.now()
	return nil
}

func (s *Session) isAvailableLocked(label string) bool {
	for _, slot := range s.slots {
		if slot.Time == label {
			return slot.Available
		}
	}
	return false
}

func (s *Session) markTakenLocked(label string) {
	for i := range s.slots {
		if s.slots[i].Time == label {
			s.slots[i].Available = false
		}
	}
}

func (s *Session) scheduleResetLocked(gen uint64) {
	s.stopResetLocked()
	if s.resetDelay <= 0 {
		s.resetLocked()
		return
	}
	s.resetTimer = time.AfterFunc(s.resetDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.generation || s.step != StepSucceeded {
			return
		}
		s.resetTimer = nil
		s.resetLocked()
	})
}

func (s *Session) stopResetLocked() {
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
}

func (s *Session) resetLocked() {
	s.step = StepDate
	s.date = ""
	s.slots = nil
	s.degraded = false
	s.slot = ""
	s.details = Details{}
	s.reservation = nil
	s.lastErr = nil
}

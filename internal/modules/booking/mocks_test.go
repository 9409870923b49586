package booking

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"clinicbook/internal/catalog"
	"clinicbook/internal/domain"
	"clinicbook/internal/resilience"
)

type MockReservationStore struct {
	mock.Mock
}

func (m *MockReservationStore) Insert(ctx context.Context, r *domain.Reservation) error {
	args := m.Called(ctx, r)
	if args.Error(0) == nil && r != nil {
		if r.ID == "" {
			r.ID = "res-1"
		}
		r.CreatedAt = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	}
	return args.Error(0)
}

func (m *MockReservationStore) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationStore) ListActiveTimes(ctx context.Context, date string, limit int) ([]string, error) {
	args := m.Called(ctx, date, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// memStore keeps reservations in memory with the same uniqueness rules as
// the database. The hooks run after a call's effect is applied.
type memStore struct {
	mu       sync.Mutex
	rows     map[string]domain.Reservation
	inserts  int
	lists    int
	onInsert func(ctx context.Context, call int) error
	onList   func(ctx context.Context, call int)
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.Reservation{}}
}

func (s *memStore) Insert(ctx context.Context, r *domain.Reservation) error {
	s.mu.Lock()
	s.inserts++
	call := s.inserts
	if _, ok := s.rows[r.ID]; ok {
		s.mu.Unlock()
		return domain.ErrDuplicateID
	}
	for _, row := range s.rows {
		if row.Date == r.Date && row.Time == r.Time && row.Status != domain.StatusCancelled {
			s.mu.Unlock()
			return domain.ErrDuplicateSlot
		}
	}
	r.CreatedAt = testNow
	s.rows[r.ID] = *r
	s.mu.Unlock()

	if s.onInsert != nil {
		return s.onInsert(ctx, call)
	}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (s *memStore) ListActiveTimes(ctx context.Context, date string, limit int) ([]string, error) {
	s.mu.Lock()
	s.lists++
	call := s.lists
	times := []string{}
	for _, row := range s.rows {
		if row.Date == date && row.Status != domain.StatusCancelled && len(times) < limit {
			times = append(times, row.Time)
		}
	}
	s.mu.Unlock()

	if s.onList != nil {
		s.onList(ctx, call)
	}
	return times, nil
}

func (s *memStore) insertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

func (s *memStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	return ids
}

type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) Get(ctx context.Context, date string) ([]domain.TimeSlot, bool, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.TimeSlot), args.Bool(1), args.Error(2)
}

func (m *MockAvailabilityCache) Version(ctx context.Context, date string) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAvailabilityCache) Set(ctx context.Context, date string, version int64, slots []domain.TimeSlot) error {
	args := m.Called(ctx, date, version, slots)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, date string) error {
	args := m.Called(ctx, date)
	return args.Error(0)
}

type MockReservationCreator struct {
	mock.Mock
}

func (m *MockReservationCreator) CreateReservation(ctx context.Context, in CreateReservationInput) (*domain.Reservation, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

type MockSlotResolver struct {
	mock.Mock
}

func (m *MockSlotResolver) Resolve(ctx context.Context, date string) (Availability, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(Availability), args.Error(1)
}

// 2025-06-10 is a Tuesday.
var testNow = time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC)

func testWindow() Window {
	return Window{
		Location:    time.UTC,
		HorizonDays: 30,
		WorkingDays: catalog.DefaultWorkingDays(),
		Now:         func() time.Time { return testNow },
	}
}

func testPolicy() resilience.Policy {
	return resilience.Policy{
		Timeout:   time.Second,
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  4 * time.Millisecond,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}
}

func mustCatalog(labels ...string) catalog.Catalog {
	c, err := catalog.New(labels...)
	if err != nil {
		panic(err)
	}
	return c
}

func validInput() CreateReservationInput {
	return CreateReservationInput{
		PatientName:  "Amal Haddad",
		PatientEmail: "amal@example.com",
		PatientPhone: "+971500000001",
		Date:         "2025-06-12",
		Time:         "09:30",
	}
}

package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"clinicbook/internal/domain"
	"clinicbook/internal/logging"
	"clinicbook/internal/middleware"
	"clinicbook/internal/pkg/jwt"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Config struct {
	AdminEmail        string
	AdminPasswordHash string
	Location          *time.Location
	Now               func() time.Time
}

type Service struct {
	reservations ReservationRepository
	cache        AvailabilityInvalidator
	events       EventPublisher
	jwt          *jwt.Service
	cfg          Config
	log          *zap.Logger
}

func NewService(
	reservations ReservationRepository,
	cache AvailabilityInvalidator,
	events EventPublisher,
	jwtService *jwt.Service,
	cfg Config,
	log *zap.Logger,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	return &Service{
		reservations: reservations,
		cache:        cache,
		events:       events,
		jwt:          jwtService,
		cfg:          cfg,
		log:          logging.OrNop(log),
	}
}

// Login checks the single staff account and issues an admin token. With no
// password hash configured every attempt fails.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if s.cfg.AdminPasswordHash == "" {
		s.log.Warn("admin login attempted but ADMIN_PASSWORD_HASH is not set")
		return nil, ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.cfg.AdminEmail)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(req.Password)); err != nil || !emailOK {
		s.log.Info("admin login rejected", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(email, middleware.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue admin token: %w", err)
	}
	s.log.Info("admin logged in", zap.String("email", email))
	return &LoginResult{
		Token:     token,
		ExpiresAt: s.cfg.Now().Add(s.jwt.TTL()).UTC(),
		Email:     email,
	}, nil
}

func (s *Service) ListReservations(ctx context.Context, q ListQuery) (*ReservationPage, error) {
	f := domain.ReservationFilter{
		Search: strings.TrimSpace(q.Search),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.Date != "" {
		date, err := domain.ParseDate(strings.TrimSpace(q.Date), s.cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
		f.Date = date
	}
	if q.Status != "" && q.Status != "all" {
		status, err := domain.ParseStatus(strings.ToLower(q.Status))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		f.Status = status
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, total, err := s.reservations.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Reservation{}
	}
	return &ReservationPage{Reservations: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *Service) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return r, nil
}

// Stats counts reservations relative to today at the clinic.
func (s *Service) Stats(ctx context.Context) (*domain.ReservationStats, error) {
	return s.reservations.Stats(ctx, domain.CalendarDate(s.cfg.Now(), s.cfg.Location))
}

// UpdateStatus moves a reservation between pending, confirmed and cancelled.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*domain.Reservation, error) {
	st, err := domain.ParseStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	r, err := s.reservations.UpdateStatus(ctx, id, st)
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.log.Info("reservation status updated", zap.String("id", r.ID), zap.String("status", string(r.Status)))
	s.changed(ctx, r)
	return r, nil
}

func (s *Service) UpdateNotes(ctx context.Context, id, notes string) (*domain.Reservation, error) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > domain.MaxNotesLength {
		return nil, fmt.Errorf("%w: notes must be at most %d characters", ErrValidation, domain.MaxNotesLength)
	}
	r, err := s.reservations.UpdateNotes(ctx, id, notes)
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.changed(ctx, r)
	return r, nil
}

func (s *Service) changed(ctx context.Context, r *domain.Reservation) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, r.Date); err != nil {
			s.log.Warn("availability cache invalidate failed", zap.String("date", r.Date), zap.Error(err))
		}
	}
	if s.events != nil {
		s.events.ReservationUpdated(r)
	}
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrDuplicateSlot):
		return ErrSlotConflict
	}
	return err
}

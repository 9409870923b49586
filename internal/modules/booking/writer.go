package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinicbook/internal/catalog"
	"clinicbook/internal/domain"
	"clinicbook/internal/logging"
	"clinicbook/internal/metrics"
	"clinicbook/internal/pkg/validator"
	"clinicbook/internal/resilience"
)

type CreateReservationInput struct {
	PatientName  string `json:"patient_name" validate:"required,max=120"`
	PatientEmail string `json:"patient_email" validate:"required,email,max=254"`
	PatientPhone string `json:"patient_phone" validate:"required,max=32"`
	Notes        string `json:"notes"`
	Date         string `json:"appointment_date"`
	Time         string `json:"appointment_time"`
}

func (in CreateReservationInput) normalized() CreateReservationInput {
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.PatientEmail = strings.ToLower(strings.TrimSpace(in.PatientEmail))
	in.PatientPhone = strings.TrimSpace(in.PatientPhone)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	return in
}

type WriterConfig struct {
	Catalog       catalog.Catalog
	Window        Window
	DefaultStatus domain.ReservationStatus
	Policy        resilience.Policy
	// Fallback enables degraded reservations on store outages. Nil fails.
	Fallback ReservationFallback
	Cache    AvailabilityCache
	Metrics  *metrics.BookingMetrics
	Logger   *zap.Logger
}

// Writer validates and persists reservations.
type Writer struct {
	store         ReservationStore
	catalog       catalog.Catalog
	window        Window
	defaultStatus domain.ReservationStatus
	policy        resilience.Policy
	lookupPolicy  resilience.Policy
	fallback      ReservationFallback
	cache         AvailabilityCache
	metrics       *metrics.BookingMetrics
	log           *zap.Logger
}

func NewWriter(store ReservationStore, cfg WriterConfig) *Writer {
	w := &Writer{
		store:         store,
		catalog:       cfg.Catalog,
		window:        cfg.Window,
		defaultStatus: cfg.DefaultStatus,
		fallback:      cfg.Fallback,
		cache:         cfg.Cache,
		metrics:       cfg.Metrics,
		log:           logging.OrNop(cfg.Logger),
	}
	if w.catalog.Len() == 0 {
		w.catalog = catalog.Default()
	}
	if w.defaultStatus == "" {
		w.defaultStatus = domain.StatusPending
	}
	w.policy = storePolicy(cfg.Policy, opInsert, w.metrics, w.log)
	w.lookupPolicy = storePolicy(cfg.Policy, opGetByID, w.metrics, w.log)
	return w
}

// CreateReservation validates in before touching the store, then inserts it
// with the deployment's default status.
//
// Errors: *ValidationError (ErrValidation), ErrSlotAlreadyBooked, or
// ErrTransient wrapping the last store failure. When a ReservationFallback is
// configured, transport failures return a Degraded record instead.
func (w *Writer) CreateReservation(ctx context.Context, in CreateReservationInput) (*domain.Reservation, error) {
	in = in.normalized()
	if err := w.validate(&in); err != nil {
		w.metrics.ObserveReservation(metrics.ReservationInvalid)
		return nil, err
	}

	// The id is fixed up front so a retry after a timed-out attempt that
	// committed can recognise its own row.
	draft := domain.Reservation{
		ID:           uuid.NewString(),
		PatientName:  in.PatientName,
		PatientEmail: in.PatientEmail,
		PatientPhone: in.PatientPhone,
		Notes:        in.Notes,
		Date:         in.Date,
		Time:         in.Time,
		Status:       w.defaultStatus,
	}

	var attempts atomic.Int32
	start := time.Now()
	saved, err := resilience.Do(ctx, w.policy, func(ctx context.Context) (*domain.Reservation, error) {
		attempts.Add(1)
		rec := draft
		if err := w.store.Insert(ctx, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	})
	w.metrics.ObserveStoreCall(opInsert, err == nil, time.Since(start).Seconds())

	if err != nil && attempts.Load() > 1 && isDuplicate(err) {
		if own := w.committedEarlier(ctx, draft); own != nil {
			saved, err = own, nil
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateSlot), errors.Is(err, domain.ErrDuplicateID):
		w.metrics.ObserveReservation(metrics.ReservationConflict)
		w.log.Info("reservation conflict", zap.String("date", in.Date), zap.String("time", in.Time))
		return nil, ErrSlotAlreadyBooked
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case w.fallback != nil:
		rec := w.fallback.Reserve(draft)
		w.metrics.ObserveReservation(metrics.ReservationDegraded)
		w.log.Warn("reservation store unreachable, recorded degraded reservation",
			zap.String("id", rec.ID),
			zap.String("date", rec.Date),
			zap.String("time", rec.Time),
			zap.Error(err),
		)
		return rec, nil
	default:
		w.metrics.ObserveReservation(metrics.ReservationTransient)
		w.log.Error("reservation store unreachable", zap.String("date", in.Date), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	w.metrics.ObserveReservation(metrics.ReservationCreated)
	w.log.Info("reservation created",
		zap.String("id", saved.ID),
		zap.String("date", saved.Date),
		zap.String("time", saved.Time),
		zap.String("status", string(saved.Status)),
	)
	if w.cache != nil {
		if err := w.cache.Invalidate(ctx, saved.Date); err != nil {
			w.log.Warn("availability cache invalidate failed", zap.String("date", saved.Date), zap.Error(err))
		}
	}
	return saved, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicateSlot) || errors.Is(err, domain.ErrDuplicateID)
}

// committedEarlier returns the row an earlier attempt of this request wrote,
// or nil when draft.ID is absent or belongs to a different booking.
func (w *Writer) committedEarlier(ctx context.Context, draft domain.Reservation) *domain.Reservation {
	start := time.Now()
	rec, err := resilience.Do(ctx, w.lookupPolicy, func(ctx context.Context) (*domain.Reservation, error) {
		return w.store.GetByID(ctx, draft.ID)
	})
	w.metrics.ObserveStoreCall(opGetByID, err == nil, time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			w.log.Warn("reservation lookup after retried insert failed", zap.String("id", draft.ID), zap.Error(err))
		}
		return nil
	}
	if rec.Date != draft.Date || rec.Time != draft.Time || rec.Status == domain.StatusCancelled {
		return nil
	}
	w.log.Info("retried insert found earlier attempt committed", zap.String("id", rec.ID))
	return rec
}

func (w *Writer) validate(in *CreateReservationInput) error {
	fields := validator.Validate(in)
	if fields == nil {
		fields = map[string]string{}
	}

	if utf8.RuneCountInString(in.Notes) > domain.MaxNotesLength {
		fields["notes"] = "max"
	}

	date, err := w.window.Check(in.Date)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			for k, v := range verr.Fields {
				fields[k] = v
			}
		}
	} else {
		in.Date = date
	}

	switch {
	case in.Time == "":
		fields["appointment_time"] = "required"
	case !w.catalog.Contains(in.Time):
		fields["appointment_time"] = "not a bookable time slot"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

package booking

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"clinicbook/internal/catalog"
	"clinicbook/internal/domain"
	"clinicbook/internal/logging"
	"clinicbook/internal/metrics"
	"clinicbook/internal/resilience"
)

// Availability is the resolved slot list for one calendar date.
type Availability struct {
	Date     string            `json:"date"`
	Slots    []domain.TimeSlot `json:"slots"`
	Degraded bool              `json:"degraded"`
}

type ResolverConfig struct {
	Catalog  catalog.Catalog
	Location *time.Location
	Policy   resilience.Policy
	// Fallback serves store outages. Nil means ClosedFallback.
	Fallback AvailabilityFallback
	Cache    AvailabilityCache
	Metrics  *metrics.BookingMetrics
	Logger   *zap.Logger
}

// Resolver answers which catalog slots are still free on a date.
type Resolver struct {
	store    ReservationStore
	catalog  catalog.Catalog
	loc      *time.Location
	policy   resilience.Policy
	fallback AvailabilityFallback
	cache    AvailabilityCache
	metrics  *metrics.BookingMetrics
	log      *zap.Logger
}

func NewResolver(store ReservationStore, cfg ResolverConfig) *Resolver {
	r := &Resolver{
		store:    store,
		catalog:  cfg.Catalog,
		loc:      cfg.Location,
		fallback: cfg.Fallback,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		log:      logging.OrNop(cfg.Logger),
	}
	if r.catalog.Len() == 0 {
		r.catalog = catalog.Default()
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.fallback == nil {
		r.fallback = ClosedFallback{}
	}
	r.policy = storePolicy(cfg.Policy, opListActiveTimes, r.metrics, r.log)
	return r
}

// GetAvailableSlots returns every catalog slot for day's calendar date at
// the clinic, in catalog order. It never fails; store outages and
// cancellations yield the fallback list.
func (r *Resolver) GetAvailableSlots(ctx context.Context, day time.Time) []domain.TimeSlot {
	date := domain.CalendarDate(day, r.loc)
	a, err := r.Resolve(ctx, date)
	if err != nil {
		return r.fallback.Slots(date, r.catalog.Slots())
	}
	return a.Slots
}

// Resolve parses raw as a calendar date and resolves its availability.
// Errors are limited to malformed dates and ctx cancellation.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Availability, error) {
	date, err := domain.ParseDate(strings.TrimSpace(raw), r.loc)
	if err != nil {
		return Availability{}, invalidField("date", "must be YYYY-MM-DD")
	}

	if r.cache != nil {
		slots, ok, err := r.cache.Get(ctx, date)
		if err != nil {
			r.log.Warn("availability cache read failed", zap.String("date", date), zap.Error(err))
		} else if ok && len(slots) == r.catalog.Len() {
			r.metrics.ObserveAvailability(metrics.AvailabilityCache)
			return Availability{Date: date, Slots: slots}, nil
		}
	}

	// The version is read before the store so a booking committed after
	// the read bumps it and the write below is dropped.
	version, cacheable := int64(0), r.cache != nil
	if cacheable {
		if version, err = r.cache.Version(ctx, date); err != nil {
			r.log.Warn("availability cache version read failed", zap.String("date", date), zap.Error(err))
			cacheable = false
		}
	}

	labels := r.catalog.Slots()
	start := time.Now()
	reserved, err := resilience.Do(ctx, r.policy, func(ctx context.Context) ([]string, error) {
		return r.store.ListActiveTimes(ctx, date, len(labels))
	})
	r.metrics.ObserveStoreCall(opListActiveTimes, err == nil, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return Availability{}, ctx.Err()
		}
		r.metrics.ObserveAvailability(metrics.AvailabilityFallback)
		r.log.Warn("availability store unreachable, serving fallback",
			zap.String("date", date),
			zap.Error(err),
		)
		return Availability{Date: date, Slots: r.fallback.Slots(date, labels), Degraded: true}, nil
	}

	taken := make(map[string]struct{}, len(reserved))
	for _, t := range reserved {
		taken[t] = struct{}{}
	}
	slots := make([]domain.TimeSlot, len(labels))
	for i, l := range labels {
		_, booked := taken[l]
		slots[i] = domain.TimeSlot{Time: l, Available: !booked}
	}
	r.metrics.ObserveAvailability(metrics.AvailabilityStore)

	if cacheable {
		if err := r.cache.Set(ctx, date, version, slots); err != nil {
			r.log.Warn("availability cache write failed", zap.String("date", date), zap.Error(err))
		}
	}
	return Availability{Date: date, Slots: slots}, nil
}

// Invalidate drops any cached availability for date.
func (r *Resolver) Invalidate(ctx context.Context, date string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, date); err != nil {
		r.log.Warn("availability cache invalidate failed", zap.String("date", date), zap.Error(err))
	}
}

package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"clinicbook/internal/domain"
	"clinicbook/internal/metrics"
	"clinicbook/internal/resilience"
)

const (
	opListActiveTimes = "list_active_times"
	opInsert          = "insert"
	opGetByID         = "get_by_id"
)

// storePolicy decorates base with the booking retry predicate and retry
// observation for the named store operation.
func storePolicy(base resilience.Policy, op string, m *metrics.BookingMetrics, log *zap.Logger) resilience.Policy {
	p := base
	p.Retryable = retryable
	p.OnRetry = func(next int, delay time.Duration, err error) {
		m.ObserveRetry(op)
		log.Warn("store call failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", next),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return p
}

// Conflicts, misses and validation failures repeat deterministically.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrDuplicateSlot),
		errors.Is(err, domain.ErrDuplicateID),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

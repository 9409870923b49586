package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for availability lookups, reservation
// writes and store retries.
type BookingMetrics struct {
	availabilityTotal *prometheus.CounterVec
	reservationTotal  *prometheus.CounterVec
	storeRetries      *prometheus.CounterVec
	storeLatency      *prometheus.HistogramVec
}

// Availability outcomes.
const (
	AvailabilityStore    = "store"
	AvailabilityCache    = "cache"
	AvailabilityFallback = "fallback"
)

// Reservation outcomes.
const (
	ReservationCreated   = "created"
	ReservationConflict  = "conflict"
	ReservationInvalid   = "invalid"
	ReservationTransient = "transient"
	ReservationDegraded  = "degraded"
)

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "availability",
			Name:      "lookups_total",
			Help:      "Availability lookups by source",
		}, []string{"source"}),
		reservationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "reservations",
			Name:      "requests_total",
			Help:      "Reservation create requests by outcome",
		}, []string{"outcome"}),
		storeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "store",
			Name:      "retries_total",
			Help:      "Store call retries by operation",
		}, []string{"operation"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "store",
			Name:      "call_duration_seconds",
			Help:      "Duration of guarded store calls including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.availabilityTotal, m.reservationTotal, m.storeRetries, m.storeLatency)
	return m
}

func (m *BookingMetrics) ObserveAvailability(source string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(source).Inc()
}

func (m *BookingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.storeRetries.WithLabelValues(operation).Inc()
}

func (m *BookingMetrics) ObserveStoreCall(operation string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.storeLatency.WithLabelValues(operation, status).Observe(seconds)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow. All
// observe helpers are nil-safe so callers can run without metrics wired.
type BookingMetrics struct {
	bookingsTotal *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.httpLatency)
	return m
}

// Booking outcome labels.
const (
	OutcomeBooked       = "booked"
	OutcomeSlotConflict = "slot_conflict"
	OutcomeDailyCap     = "daily_cap"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
	OutcomeCancelled    = "cancelled"
)

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveHTTP(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(method, status).Observe(seconds)
}

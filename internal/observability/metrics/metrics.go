package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking coordinator and
// the background sweeps.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	versionConflicts  *prometheus.CounterVec
	bookingLatency    *prometheus.HistogramVec
	noShowsSwept      prometheus.Counter
	slotsExpired      prometheus.Counter
	sweepBatchesTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branch",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branch",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Total appointment state transitions by kind and outcome",
		}, []string{"transition", "outcome"}),
		versionConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branch",
			Subsystem: "booking",
			Name:      "version_conflicts_total",
			Help:      "Optimistic lock conflicts by operation",
		}, []string{"operation"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "branch",
			Subsystem: "booking",
			Name:      "operation_latency_seconds",
			Help:      "Latency of coordinator operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		noShowsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "branch",
			Subsystem: "noshow",
			Name:      "appointments_marked_total",
			Help:      "Appointments marked no-show by the sweeper",
		}),
		slotsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "branch",
			Subsystem: "slots",
			Name:      "expired_total",
			Help:      "Slots retired by the expiry sweep",
		}),
		sweepBatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branch",
			Subsystem: "noshow",
			Name:      "sweep_batches_total",
			Help:      "No-show sweep batches by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal, m.transitionsTotal, m.versionConflicts,
		m.bookingLatency, m.noShowsSwept, m.slotsExpired, m.sweepBatchesTotal,
	)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(transition, outcome).Inc()
}

func (m *BookingMetrics) ObserveVersionConflict(operation string) {
	if m == nil {
		return
	}
	m.versionConflicts.WithLabelValues(operation).Inc()
}

func (m *BookingMetrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) AddNoShowsSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.noShowsSwept.Add(float64(n))
}

func (m *BookingMetrics) AddSlotsExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsExpired.Add(float64(n))
}

func (m *BookingMetrics) ObserveSweepBatch(outcome string) {
	if m == nil {
		return
	}
	m.sweepBatchesTotal.WithLabelValues(outcome).Inc()
}

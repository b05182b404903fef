package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for appointment flows.
type BookingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	availabilityTotal *prometheus.CounterVec
	storeLatency      *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spadesk",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Appointment operations by outcome",
		}, []string{"operation", "outcome"}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spadesk",
			Subsystem: "appointments",
			Name:      "availability_checks_total",
			Help:      "Availability lookups by result",
		}, []string{"available"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spadesk",
			Subsystem: "appointments",
			Name:      "store_latency_seconds",
			Help:      "Latency of appointment store calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.availabilityTotal, m.storeLatency)
	return m
}

func (m *BookingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveAvailability(available bool) {
	if m == nil {
		return
	}
	label := "false"
	if available {
		label = "true"
	}
	m.availabilityTotal.WithLabelValues(label).Inc()
}

func (m *BookingMetrics) ObserveStoreLatency(call string, seconds float64) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(call).Observe(seconds)
}

// ChatMetrics tracks what the assistant hears and how it answers.
type ChatMetrics struct {
	intentsTotal *prometheus.CounterVec
	actionsTotal *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spadesk",
			Subsystem: "assistant",
			Name:      "intents_total",
			Help:      "Interpreted chat intents",
		}, []string{"intent"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spadesk",
			Subsystem: "assistant",
			Name:      "actions_total",
			Help:      "Dialogue actions taken by the assistant",
		}, []string{"action"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intentsTotal, m.actionsTotal)
	return m
}

func (m *ChatMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
}

func (m *ChatMetrics) ObserveAction(action string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action).Inc()
}

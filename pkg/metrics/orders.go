package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "menuboard"

// OrderMetrics counts order submissions, status changes and live viewers.
type OrderMetrics struct {
	submitted   *prometheus.CounterVec
	failed      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// NewOrderMetrics registers the order metrics on reg. A nil registerer
// yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_submitted_total",
		Help:      "Orders accepted, by delivery method.",
	}, []string{"delivery_method"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_rejected_total",
		Help:      "Order submissions rejected, by error code.",
	}, []string{"code"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"from", "to"})
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "orders_live_subscribers",
		Help:      "Open live order feed subscriptions.",
	})
	reg.MustRegister(submitted, failed, transitions, subscribers)
	return &OrderMetrics{
		submitted:   submitted,
		failed:      failed,
		transitions: transitions,
		subscribers: subscribers,
	}
}

func (m *OrderMetrics) IncSubmitted(deliveryMethod string) {
	if m == nil || m.submitted == nil {
		return
	}
	m.submitted.WithLabelValues(normalizeLabel(deliveryMethod)).Inc()
}

func (m *OrderMetrics) IncRejected(code string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// AddSubscribers moves the live subscriber gauge by delta.
func (m *OrderMetrics) AddSubscribers(delta int) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}

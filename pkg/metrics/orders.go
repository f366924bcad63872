package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records checkout, reconciliation, and refund activity.
type OrderMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	checkouts        *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	refunds          *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout executions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts by payment method and outcome.",
	}, []string{"payment_method", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Provider webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_initiated_total",
		Help: "Refund initiations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(checkoutDuration, checkouts, webhookEvents, refunds)
	return &OrderMetrics{
		checkoutDuration: checkoutDuration,
		checkouts:        checkouts,
		webhookEvents:    webhookEvents,
		refunds:          refunds,
	}
}

// ObserveCheckout records one checkout attempt.
func (m *OrderMetrics) ObserveCheckout(paymentMethod string, duration time.Duration, success bool) {
	if m == nil || m.checkouts == nil {
		return
	}
	method := normalizeLabel(paymentMethod)
	m.checkoutDuration.WithLabelValues(method).Observe(duration.Seconds())
	m.checkouts.WithLabelValues(method, outcomeLabel(success)).Inc()
}

// IncWebhookEvent counts one processed provider event.
func (m *OrderMetrics) IncWebhookEvent(eventType string, success bool) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), outcomeLabel(success)).Inc()
}

// IncRefund counts one refund initiation.
func (m *OrderMetrics) IncRefund(success bool) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(outcomeLabel(success)).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

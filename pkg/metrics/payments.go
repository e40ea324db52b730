package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records reconciliation and refund outcomes.
type PaymentMetrics struct {
	reconcileDuration *prometheus.HistogramVec
	reconcileOutcomes *prometheus.CounterVec
	refundOutcomes    *prometheus.CounterVec
	simulatedRefunds  prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	reconcileDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_reconcile_duration_seconds",
		Help:    "Duration of webhook reconciliation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reconcileOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_outcomes_total",
		Help: "Reconciliation outcomes by category.",
	}, []string{"outcome"})
	refundOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_refund_outcomes_total",
		Help: "Refund attempts by outcome.",
	}, []string{"outcome"})
	simulatedRefunds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_simulated_refunds_total",
		Help: "Refunds fabricated by the non-production simulation flag.",
	})
	reg.MustRegister(reconcileDuration, reconcileOutcomes, refundOutcomes, simulatedRefunds)
	return &PaymentMetrics{
		reconcileDuration: reconcileDuration,
		reconcileOutcomes: reconcileOutcomes,
		refundOutcomes:    refundOutcomes,
		simulatedRefunds:  simulatedRefunds,
	}
}

// ObserveReconcile records one reconciliation pass.
func (p *PaymentMetrics) ObserveReconcile(outcome string, duration time.Duration) {
	if p == nil || p.reconcileDuration == nil {
		return
	}
	label := normalizeLabel(outcome)
	p.reconcileDuration.WithLabelValues(label).Observe(duration.Seconds())
	p.reconcileOutcomes.WithLabelValues(label).Inc()
}

// IncRefund increments the refund outcome counter.
func (p *PaymentMetrics) IncRefund(outcome string) {
	if p == nil || p.refundOutcomes == nil {
		return
	}
	p.refundOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSimulatedRefund counts an audited simulated refund.
func (p *PaymentMetrics) IncSimulatedRefund() {
	if p == nil || p.simulatedRefunds == nil {
		return
	}
	p.simulatedRefunds.Inc()
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}

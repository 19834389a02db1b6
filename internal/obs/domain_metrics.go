package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentVerifyTotal counts verification outcomes: verified, rejected, malformed, transport, invalid.
	PaymentVerifyTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// PaymentVerifyLatency records provider verification latency in milliseconds.
	PaymentVerifyLatency prometheus.Histogram
	// PaymentTaskTotal counts background task outcomes by task type.
	PaymentTaskTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_total",
			Help:      "Count of payment verification outcomes.",
		}, []string{"result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by event and outcome.",
		}, []string{"event", "result"})
		PaymentVerifyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_verify_duration_ms",
			Help:      "Latency of provider verification calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		})
		PaymentTaskTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_task_total",
			Help:      "Count of payment background task outcomes.",
		}, []string{"type", "result"})

		PaymentVerifyTotal = register(reg, PaymentVerifyTotal)
		PaymentWebhookTotal = register(reg, PaymentWebhookTotal)
		PaymentVerifyLatency = register(reg, PaymentVerifyLatency)
		PaymentTaskTotal = register(reg, PaymentTaskTotal)
	})
}

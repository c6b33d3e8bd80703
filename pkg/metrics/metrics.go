package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatcher worker metrics.
type Metrics struct {
	DeliveriesAttempted *prometheus.CounterVec
	DeliveriesFailed    *prometheus.CounterVec
	DeliveryLatency     prometheus.Histogram
	QueueClaimSize      prometheus.Gauge
	DeliveryRetries     *prometheus.CounterVec
}

// NewMetrics creates and registers all dispatcher metrics.
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		DeliveriesAttempted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_attempted_total",
			Help:      "Delivery attempts by channel and result",
		}, []string{"channel", "result"}),
		DeliveriesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_failed_total",
			Help:      "Terminally failed deliveries by channel",
		}, []string{"channel"}),
		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_batch_duration_seconds",
			Help:      "Time spent processing one claimed batch",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		QueueClaimSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_claim_size",
			Help:      "Number of jobs claimed in the last poll",
		}),
		DeliveryRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_retry_attempts_total",
			Help:      "Scheduled delivery retries by channel",
		}, []string{"channel"}),
	}
}

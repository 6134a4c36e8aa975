package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the relay from outbox_events to Pub/Sub.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failures  *prometheus.CounterVec
	dead      *prometheus.CounterVec
	lag       prometheus.Histogram
	batch     prometheus.Histogram
}

// NewOutboxMetrics registers relay metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_outbox_published_total",
			Help: "Events acknowledged by the broker.",
		}, []string{"topic"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_outbox_publish_failures_total",
			Help: "Publish attempts that will be retried.",
		}, []string{"topic"}),
		dead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_outbox_dead_lettered_total",
			Help: "Events moved to outbox_dlq.",
		}, []string{"reason"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_outbox_publish_lag_seconds",
			Help:    "Time between the event occurring and the broker ack.",
			Buckets: []float64{.1, .5, 1, 5, 30, 120, 600, 3600},
		}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_outbox_batch_size",
			Help:    "Rows claimed per poll.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	reg.MustRegister(m.published, m.failures, m.dead, m.lag, m.batch)
	return m
}

// ObservePublished counts a broker ack; occurredAt may be zero when the
// envelope did not carry it.
func (m *OutboxMetrics) ObservePublished(topic string, occurredAt time.Time) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(topic)).Inc()
	if !occurredAt.IsZero() {
		m.lag.Observe(time.Since(occurredAt).Seconds())
	}
}

func (m *OutboxMetrics) IncFailure(topic string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(topic)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(reason string) {
	if m == nil || m.dead == nil {
		return
	}
	m.dead.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(n int) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(float64(n))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as label values.
const (
	OutcomeSuccess      = "success"
	OutcomeFailed       = "failed"
	OutcomePrecondition = "precondition_failed"
	OutcomeDuplicate    = "duplicate"
)

// CheckoutMetrics tracks commit outcomes and the step at which commits break.
type CheckoutMetrics struct {
	commits      *prometheus.CounterVec
	stepFailures *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewCheckoutMetrics registers checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_commits_total",
		Help: "Checkout commit attempts by outcome.",
	}, []string{"outcome"})
	stepFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_step_failures_total",
		Help: "Commit step failures; each one leaves a partial sale for reconciliation.",
	}, []string{"step"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_checkout_commit_duration_seconds",
		Help:    "Wall time spent in the committing state.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(commits, stepFailures, duration)
	return &CheckoutMetrics{
		commits:      commits,
		stepFailures: stepFailures,
		duration:     duration,
	}
}

// IncCommit counts one commit attempt with the given outcome.
func (m *CheckoutMetrics) IncCommit(outcome string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStepFailure counts a failure at the named step.
func (m *CheckoutMetrics) IncStepFailure(step string) {
	if m == nil || m.stepFailures == nil {
		return
	}
	m.stepFailures.WithLabelValues(normalizeLabel(step)).Inc()
}

// ObserveCommit records how long a commit took.
func (m *CheckoutMetrics) ObserveCommit(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCheckoutMetricsCountsOutcomesAndSteps(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.IncCommit(OutcomeSuccess)
	m.IncCommit(OutcomeSuccess)
	m.IncCommit(OutcomeFailed)
	m.IncStepFailure("stock_movements")
	m.ObserveCommit(40 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "pos_checkout_commits_total", "outcome", OutcomeSuccess); err != nil || got != 2 {
		t.Fatalf("expected 2 successes, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "pos_checkout_step_failures_total", "step", "stock_movements"); err != nil || got != 1 {
		t.Fatalf("expected 1 step failure, got %f err=%v", got, err)
	}
	mf := findMetricFamily(mfs, "pos_checkout_commit_duration_seconds")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one duration sample")
	}
}

func TestInventoryMetricsClampAndAnomalies(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInventoryMetrics(reg)
	m.IncMovement("out", "sale")
	m.IncClamp()
	m.AddAnomalies("stock_drift", 3)
	m.AddAnomalies("stock_drift", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "pos_inventory_movements_total", "reason", "sale"); err != nil || got != 1 {
		t.Fatalf("expected 1 sale movement, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "pos_reconciliation_anomalies_total", "kind", "stock_drift"); err != nil || got != 3 {
		t.Fatalf("expected 3 anomalies, got %f err=%v", got, err)
	}
	clamps := findMetricFamily(mfs, "pos_stock_clamps_total")
	if clamps == nil || clamps.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one clamp")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var c *CheckoutMetrics
	c.IncCommit(OutcomeSuccess)
	c.IncStepFailure("x")
	c.ObserveCommit(time.Second)
	var i *InventoryMetrics
	i.IncClamp()
	i.IncMovement("in", "purchase")
	i.AddAnomalies("k", 1)
	NewCheckoutMetrics(nil).IncCommit(OutcomeFailed)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics tracks ledger postings and consistency anomalies.
type InventoryMetrics struct {
	movements *prometheus.CounterVec
	clamps    prometheus.Counter
	anomalies *prometheus.CounterVec
}

// NewInventoryMetrics registers inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_inventory_movements_total",
		Help: "Inventory movements posted by direction and reason.",
	}, []string{"direction", "reason"})
	clamps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_stock_clamps_total",
		Help: "Outbound stock applications that had to clamp at zero.",
	})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_reconciliation_anomalies_total",
		Help: "Anomalies found by reconciliation runs.",
	}, []string{"kind"})
	reg.MustRegister(movements, clamps, anomalies)
	return &InventoryMetrics{
		movements: movements,
		clamps:    clamps,
		anomalies: anomalies,
	}
}

// IncMovement counts a posted movement.
func (m *InventoryMetrics) IncMovement(direction, reason string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(direction), normalizeLabel(reason)).Inc()
}

// IncClamp counts a clamped decrement.
func (m *InventoryMetrics) IncClamp() {
	if m == nil || m.clamps == nil {
		return
	}
	m.clamps.Inc()
}

// AddAnomalies counts reconciliation findings of one kind.
func (m *InventoryMetrics) AddAnomalies(kind string, n int) {
	if m == nil || m.anomalies == nil || n <= 0 {
		return
	}
	m.anomalies.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}

package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pos-backend/internal/reconciliation"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type reconciler interface {
	Run(ctx context.Context) (reconciliation.Report, error)
}

// NewReconciliationJob schedules the stock and sale consistency scan.
func NewReconciliationJob(logg *logger.Logger, svc reconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if svc == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	return &reconciliationJob{logg: logg, svc: svc}, nil
}

type reconciliationJob struct {
	logg *logger.Logger
	svc  reconciler
	last reconciliation.Report
}

func (j *reconciliationJob) Name() string { return "reconciliation" }

// Run reports anomalies but only fails when the scan itself could not finish
// or events could not be queued.
func (j *reconciliationJob) Run(ctx context.Context) error {
	report, err := j.svc.Run(ctx)
	j.last = report
	if err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}
	if !report.Clean() {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"stock_drift":         len(report.StockDrift),
			"missing_movements":   len(report.MissingMovements),
			"sales_without_lines": len(report.SalesWithoutLines),
			"new_anomalies":       report.NewAnomalies,
		}), "cron.reconciliation.anomalies")
	}
	return nil
}

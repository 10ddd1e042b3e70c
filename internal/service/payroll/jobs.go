package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// ScanAnomalies logs the unresolved anomalies of every run awaiting
// approval. It is run by the scheduler.
func (s *PayrollServiceImpl) ScanAnomalies(ctx context.Context) error {
	runs, err := s.RunRepo.ListByStatuses(ctx, []payroll.RunStatus{
		payroll.RunStatusUnderReview,
		payroll.RunStatusPendingFinanceApproval,
	})
	if err != nil {
		return err
	}

	for _, run := range runs {
		anomalies, err := s.ListAnomalies(ctx, run.ID)
		if err != nil {
			s.Logger.Error("Anomaly scan failed", "run_id", run.ID, "error", err)
			continue
		}

		unresolved := 0
		for _, a := range anomalies {
			if !a.Resolved {
				unresolved++
			}
		}
		if unresolved == 0 {
			continue
		}
		s.Logger.Warn("Run has unresolved anomalies",
			"run_id", run.ID,
			"period", run.Period.Format("2006-01"),
			"entity", run.Entity,
			"status", run.Status,
			"unresolved", unresolved,
			"total", len(anomalies),
		)
	}

	return nil
}

package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	ReasonNegativeNetPay  = "Negative Net Pay"
	ReasonMissingBank     = "Missing Bank Details"
	reasonNetPaySpikeFmt  = "Net Pay Spike (+%s%%)"
	anomalyLookupParallel = 8
	anomalyComputeTimeout = time.Minute
)

// DetectAnomalies returns why slip needs review, or nil. previous is the
// employee's latest payslip from another run, if any.
func DetectAnomalies(slip payroll.Payslip, hasBankAccount bool, previous *payroll.Payslip, spikeThreshold decimal.Decimal) []string {
	var reasons []string

	if slip.NetPay.IsNegative() {
		reasons = append(reasons, ReasonNegativeNetPay)
	}
	if !hasBankAccount {
		reasons = append(reasons, ReasonMissingBank)
	}
	if previous != nil && previous.NetPay.IsPositive() {
		change := slip.NetPay.Sub(previous.NetPay).Div(previous.NetPay)
		if change.GreaterThan(spikeThreshold) {
			reasons = append(reasons, fmt.Sprintf(reasonNetPaySpikeFmt, change.Mul(hundred).Round(1).String()))
		}
	}

	return reasons
}

// detect runs DetectAnomalies with the employee's latest payslip outside
// slip's run.
func (s *PayrollServiceImpl) detect(ctx context.Context, slip payroll.Payslip, hasBankAccount bool) ([]string, error) {
	var previous *payroll.Payslip
	prior, err := s.PayslipRepo.LatestForEmployee(ctx, slip.EmployeeID, slip.RunID)
	switch {
	case err == nil:
		previous = &prior
	case errors.Is(err, payroll.ErrPayslipNotFound):
	default:
		return nil, err
	}

	return DetectAnomalies(slip, hasBankAccount, previous, s.opts.SpikeThreshold), nil
}

// detectAll runs detect over slips in parallel. Bank details come from the
// directory, not the payslip copy.
func (s *PayrollServiceImpl) detectAll(ctx context.Context, slips []payroll.Payslip, employees map[string]employee.Employee) ([][]string, error) {
	reasons := make([][]string, len(slips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(anomalyLookupParallel)
	for i, slip := range slips {
		g.Go(func() error {
			hasBank := false
			if emp, ok := employees[slip.EmployeeID]; ok {
				hasBank = emp.HasBankAccount()
			}
			r, err := s.detect(gctx, slip, hasBank)
			if err != nil {
				return err
			}
			reasons[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reasons, nil
}

// countExceptions is the number of slips with at least one anomaly.
func (s *PayrollServiceImpl) countExceptions(ctx context.Context, slips []payroll.Payslip) (int, error) {
	ids := make([]string, 0, len(slips))
	for _, slip := range slips {
		ids = append(ids, slip.EmployeeID)
	}
	employees, err := s.EmployeeRepo.GetByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	reasons, err := s.detectAll(ctx, slips, employees)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range reasons {
		if len(r) > 0 {
			count++
		}
	}
	return count, nil
}

// ========== ANOMALY QUERIES ==========

// ListAnomalies recomputes the anomaly view of a run from current data.
// Concurrent calls for the same run share one computation, which runs
// detached from any single caller and is bounded by anomalyComputeTimeout.
func (s *PayrollServiceImpl) ListAnomalies(ctx context.Context, runID string) ([]payroll.AnomalyResponse, error) {
	ch := s.anomalies.DoChan(runID, func() (interface{}, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), anomalyComputeTimeout)
		defer cancel()
		return s.computeAnomalies(computeCtx, runID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]payroll.AnomalyResponse)
		return append([]payroll.AnomalyResponse(nil), shared...), nil
	}
}

func (s *PayrollServiceImpl) computeAnomalies(ctx context.Context, runID string) ([]payroll.AnomalyResponse, error) {
	if _, err := s.RunRepo.GetByID(ctx, runID); err != nil {
		return nil, err
	}

	slips, err := s.PayslipRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(slips))
	payslipIDs := make([]string, 0, len(slips))
	for _, slip := range slips {
		ids = append(ids, slip.EmployeeID)
		payslipIDs = append(payslipIDs, slip.ID)
	}

	employees, err := s.EmployeeRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	resolutions, err := s.ResolutionRepo.ListByPayslipIDs(ctx, payslipIDs)
	if err != nil {
		return nil, err
	}

	reasons, err := s.detectAll(ctx, slips, employees)
	if err != nil {
		return nil, err
	}

	result := make([]payroll.AnomalyResponse, 0)
	for i, slip := range slips {
		if len(reasons[i]) == 0 {
			continue
		}
		item := payroll.AnomalyResponse{
			PayslipID:    slip.ID,
			EmployeeID:   slip.EmployeeID,
			EmployeeName: slip.EmployeeName,
			NetPay:       slip.NetPay,
			Reasons:      reasons[i],
		}
		if res, ok := resolutions[slip.ID]; ok {
			resolvedAt, resolvedBy, notes := res.ResolvedAt, res.ResolvedBy, res.Notes
			item.Resolved = true
			item.ResolvedAt = &resolvedAt
			item.ResolvedBy = &resolvedBy
			item.Notes = &notes
		}
		result = append(result, item)
	}

	return result, nil
}

// ResolveAnomaly annotates the payslip's anomaly as reviewed. Payslip data
// is never changed.
func (s *PayrollServiceImpl) ResolveAnomaly(ctx context.Context, req payroll.ResolveAnomalyRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if _, err := s.PayslipRepo.GetByID(ctx, req.PayslipID); err != nil {
		return err
	}

	_, err := s.ResolutionRepo.Upsert(ctx, payroll.AnomalyResolution{
		PayslipID:  req.PayslipID,
		ResolvedAt: s.now().UTC(),
		ResolvedBy: req.ActorID,
		Notes:      req.Notes,
	})
	return err
}

func (s *PayrollServiceImpl) UnresolveAnomaly(ctx context.Context, payslipID string) error {
	if _, err := s.PayslipRepo.GetByID(ctx, payslipID); err != nil {
		return err
	}
	return s.ResolutionRepo.Delete(ctx, payslipID)
}

package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// ========== RUNS ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, id string) (payroll.RunResponse, error) {
	run, err := s.RunRepo.GetByID(ctx, id)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) CurrentRun(ctx context.Context, entity *string) (payroll.RunResponse, error) {
	run, err := s.RunRepo.GetCurrent(ctx, entity)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) RunHistory(ctx context.Context, filter payroll.RunFilter) (payroll.ListRunResponse, error) {
	filter.Normalize()

	runs, total, err := s.RunRepo.List(ctx, filter)
	if err != nil {
		return payroll.ListRunResponse{}, err
	}

	data := make([]payroll.RunResponse, 0, len(runs))
	for _, r := range runs {
		data = append(data, payroll.NewRunResponse(r))
	}

	return payroll.ListRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// ========== PAYSLIPS ==========

func (s *PayrollServiceImpl) ListPayslips(ctx context.Context, runID string) ([]payroll.PayslipResponse, error) {
	if _, err := s.RunRepo.GetByID(ctx, runID); err != nil {
		return nil, err
	}

	slips, err := s.PayslipRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := make([]payroll.PayslipResponse, 0, len(slips))
	for _, p := range slips {
		result = append(result, payroll.NewPayslipResponse(p))
	}
	return result, nil
}

func (s *PayrollServiceImpl) GetPayslip(ctx context.Context, id string) (payroll.PayslipResponse, error) {
	slip, err := s.PayslipRepo.GetByID(ctx, id)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}
	return payroll.NewPayslipResponse(slip), nil
}

func manualAdjustment(amount decimal.Decimal) []payroll.Contribution {
	return []payroll.Contribution{{
		Kind:   payroll.KindManualAdjustment,
		Label:  "Manual adjustment",
		Amount: amount.Round(2),
	}}
}

// adjustTo keeps the sourced items and appends one manual adjustment so the
// section totals target. Sourced items must survive an edit; the execute
// sweep pays them by source id.
func adjustTo(items []payroll.Contribution, target decimal.Decimal) []payroll.Contribution {
	kept := make([]payroll.Contribution, 0, len(items)+1)
	for _, c := range items {
		if c.Kind != payroll.KindManualAdjustment {
			kept = append(kept, c)
		}
	}
	delta := target.Round(2).Sub(payroll.SumContributions(kept))
	if delta.IsZero() {
		return kept
	}
	return append(kept, manualAdjustment(delta)...)
}

// EditPayslip overrides payslip fields while its run is editable, then
// recomputes the payslip, the run's total net pay and its exception count.
// List fields are replaced by one manual adjustment line.
func (s *PayrollServiceImpl) EditPayslip(ctx context.Context, req payroll.EditPayslipRequest) (payroll.PayslipResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayslipResponse{}, err
	}

	slip, err := s.PayslipRepo.GetByID(ctx, req.PayslipID)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}

	// Edits and recalculation of the same run never interleave.
	release, err := s.lockRun(ctx, slip.RunID)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}
	defer release()

	var updated payroll.Payslip
	err = s.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err := s.RunRepo.GetByID(ctx, slip.RunID)
		if err != nil {
			return err
		}
		if _, err := payroll.NextStatus(run.Status, payroll.ActionEditPayslip); err != nil {
			return err
		}

		// Re-read inside the transaction; a recalculation may have replaced it.
		current, err := s.PayslipRepo.GetByID(ctx, req.PayslipID)
		if err != nil {
			return err
		}
		updated = current

		if req.BaseSalary != nil {
			updated.Earnings.BaseSalary = req.BaseSalary.Round(2)
		}
		if req.GrossSalary != nil {
			updated.Earnings.GrossSalary = req.GrossSalary.Round(2)
		}
		if req.Allowances != nil {
			updated.Earnings.Allowances = manualAdjustment(*req.Allowances)
		}
		if req.Bonuses != nil {
			updated.Earnings.Bonuses = adjustTo(updated.Earnings.Bonuses, *req.Bonuses)
		}
		if req.Benefits != nil {
			updated.Earnings.Benefits = adjustTo(updated.Earnings.Benefits, *req.Benefits)
		}
		if req.Refunds != nil {
			updated.Earnings.Refunds = adjustTo(updated.Earnings.Refunds, *req.Refunds)
		}
		if req.Taxes != nil {
			updated.Deductions.Taxes = manualAdjustment(*req.Taxes)
		}
		if req.Insurance != nil {
			updated.Deductions.Insurances = manualAdjustment(*req.Insurance)
		}
		if req.PenaltiesDeducted != nil {
			updated.Deductions.Penalties.AmountDeducted = req.PenaltiesDeducted.Round(2)
		}
		if req.UnpaidLeaveDeduction != nil {
			updated.Deductions.UnpaidLeaves.Deduction = req.UnpaidLeaveDeduction.Round(2)
		}
		updated.Recompute()
		updated.UpdatedAt = s.now().UTC()

		if err := s.PayslipRepo.Update(ctx, updated); err != nil {
			return err
		}

		slips, err := s.PayslipRepo.ListByRun(ctx, run.ID)
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, p := range slips {
			total = total.Add(p.NetPay)
		}
		exceptions, err := s.countExceptions(ctx, slips)
		if err != nil {
			return err
		}
		next := run
		next.TotalNetPay = total
		next.ExceptionCount = exceptions
		if _, err := s.RunRepo.CompareAndSwap(ctx, run.Status, next); err != nil {
			return err
		}

		return s.Audit.Record(ctx, audit.ActionPayslipEdited, "payslip", updated.ID, req.ActorID,
			payslipAuditView(current), payslipAuditView(updated))
	})
	if err != nil {
		return payroll.PayslipResponse{}, err
	}

	s.Logger.Info("Payslip edited", "run_id", updated.RunID, "payslip_id", updated.ID, "actor_id", req.ActorID)

	return payroll.NewPayslipResponse(updated), nil
}

func payslipAuditView(p payroll.Payslip) map[string]string {
	return map[string]string{
		"base_salary":            p.Earnings.BaseSalary.StringFixed(2),
		"gross_salary":           p.Earnings.GrossSalary.StringFixed(2),
		"allowances":             payroll.SumContributions(p.Earnings.Allowances).StringFixed(2),
		"bonuses":                payroll.SumContributions(p.Earnings.Bonuses).StringFixed(2),
		"benefits":               payroll.SumContributions(p.Earnings.Benefits).StringFixed(2),
		"refunds":                payroll.SumContributions(p.Earnings.Refunds).StringFixed(2),
		"taxes":                  payroll.SumContributions(p.Deductions.Taxes).StringFixed(2),
		"insurance":              payroll.SumContributions(p.Deductions.Insurances).StringFixed(2),
		"penalties_deducted":     p.Deductions.Penalties.AmountDeducted.StringFixed(2),
		"unpaid_leave_deduction": p.Deductions.UnpaidLeaves.Deduction.StringFixed(2),
		"total_gross_salary":     p.TotalGrossSalary.StringFixed(2),
		"total_deductions":       p.TotalDeductions.StringFixed(2),
		"net_pay":                p.NetPay.StringFixed(2),
	}
}

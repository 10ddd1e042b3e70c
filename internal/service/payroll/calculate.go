package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/events"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Calculate recomputes every payslip of a DRAFT or REJECTED run and replaces
// the previous set. Calculations of the same run are mutually exclusive.
func (s *PayrollServiceImpl) Calculate(ctx context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	if err := req.Validate(false); err != nil {
		return payroll.RunResponse{}, err
	}

	release, err := s.lockRun(ctx, req.RunID)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	defer release()

	run, err := s.RunRepo.GetByID(ctx, req.RunID)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	if _, err := payroll.NextStatus(run.Status, payroll.ActionCalculate); err != nil {
		return payroll.RunResponse{}, err
	}

	started := s.now()
	s.Logger.Info("Payroll calculation started", "run_id", run.ID, "period", run.Period.Format("2006-01"), "entity", run.Entity)

	slips, exceptions, err := s.computeRun(ctx, run)
	if err != nil {
		return payroll.RunResponse{}, err
	}

	total := decimal.Zero
	for _, slip := range slips {
		total = total.Add(slip.NetPay)
	}

	var updated payroll.Run
	err = s.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.PayslipRepo.ReplaceForRun(ctx, run.ID, slips); err != nil {
			return err
		}

		next := run
		next.Status = payroll.RunStatusDraft
		next.EmployeeCount = len(slips)
		next.ExceptionCount = exceptions
		next.TotalNetPay = total

		var err error
		updated, err = s.RunRepo.CompareAndSwap(ctx, run.Status, next)
		return err
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}

	s.Logger.Info("Payroll calculation completed",
		"run_id", run.ID,
		"employee_count", updated.EmployeeCount,
		"exception_count", updated.ExceptionCount,
		"total_net_pay", updated.TotalNetPay.StringFixed(2),
		"duration", s.now().Sub(started),
	)
	s.publish(ctx, events.RunCalculated, updated, req.ActorID)

	return payroll.NewRunResponse(updated), nil
}

func (s *PayrollServiceImpl) lockRun(ctx context.Context, runID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	defer cancel()

	release, err := s.Locker.Lock(lockCtx, runID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, payroll.ErrCalculationInProgress
		}
		return nil, fmt.Errorf("failed to lock payroll run: %w", err)
	}
	return release, nil
}

// calculationBatch is the shared read-only input of one run's calculation.
type calculationBatch struct {
	employees []employee.Employee
	payGrades map[string]employee.PayGrade
	bonuses   map[string][]compensation.SigningBonus
	benefits  map[string][]compensation.TerminationBenefit
	refunds   map[string][]compensation.Refund
	penalties map[string][]compensation.Penalty
	leaves    map[string][]leave.LeaveRequest
}

// computeRun produces the payslips of run, sorted by employee name then id,
// and the number of anomalous ones.
func (s *PayrollServiceImpl) computeRun(ctx context.Context, run payroll.Run) ([]payroll.Payslip, int, error) {
	periodStart, periodEnd, _ := payroll.PeriodBounds(run.Period)

	snapshot, err := s.ConfigRepo.LoadApproved(ctx)
	if err != nil {
		return nil, 0, err
	}
	snapshot.MinimumWage = s.opts.MinimumWage

	batch, err := s.loadBatch(ctx, run, periodStart, periodEnd)
	if err != nil {
		return nil, 0, err
	}

	slips := make([]*payroll.Payslip, len(batch.employees))
	anomalous := make([]bool, len(batch.employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, emp := range batch.employees {
		g.Go(func() error {
			if emp.PayGradeID == nil {
				s.Logger.Warn("Employee skipped: no pay grade", "run_id", run.ID, "employee_id", emp.ID)
				return nil
			}
			grade, ok := batch.payGrades[*emp.PayGradeID]
			if !ok {
				s.Logger.Warn("Employee skipped: pay grade not found", "run_id", run.ID, "employee_id", emp.ID, "pay_grade_id", *emp.PayGradeID)
				return nil
			}

			slip := s.calculator.Compute(CalculationInput{
				RunID:               run.ID,
				Employee:            emp,
				PayGrade:            grade,
				PeriodStart:         periodStart,
				PeriodEnd:           periodEnd,
				Snapshot:            snapshot,
				SigningBonuses:      batch.bonuses[emp.ID],
				TerminationBenefits: batch.benefits[emp.ID],
				Refunds:             batch.refunds[emp.ID],
				Penalties:           batch.penalties[emp.ID],
				Leaves:              batch.leaves[emp.ID],
			})

			reasons, err := s.detect(gctx, slip, emp.HasBankAccount())
			if err != nil {
				return fmt.Errorf("employee %s: %w", emp.ID, err)
			}

			slips[i] = &slip
			anomalous[i] = len(reasons) > 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	now := s.now().UTC()
	result := make([]payroll.Payslip, 0, len(slips))
	exceptions := 0
	for i, slip := range slips {
		if slip == nil {
			continue
		}
		slip.CreatedAt = now
		slip.UpdatedAt = now
		result = append(result, *slip)
		if anomalous[i] {
			exceptions++
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].EmployeeName != result[j].EmployeeName {
			return result[i].EmployeeName < result[j].EmployeeName
		}
		return result[i].EmployeeID < result[j].EmployeeID
	})

	return result, exceptions, nil
}

// loadBatch reads the employee scope and every per-employee source in bulk.
func (s *PayrollServiceImpl) loadBatch(ctx context.Context, run payroll.Run, periodStart, periodEnd time.Time) (calculationBatch, error) {
	var batch calculationBatch

	// An entity that names a department restricts the run to it.
	var department *string
	exists, err := s.EmployeeRepo.DepartmentExists(ctx, run.Entity)
	if err != nil {
		return batch, err
	}
	if exists {
		department = &run.Entity
	}

	active, err := s.EmployeeRepo.ListActive(ctx, department)
	if err != nil {
		return batch, err
	}

	batch.employees = make([]employee.Employee, 0, len(active))
	ids := make([]string, 0, len(active))
	for _, emp := range active {
		if emp.Status != employee.StatusActive {
			continue
		}
		if ContractEndedBefore(emp.ContractEndDate, periodStart) {
			s.Logger.Warn("Employee skipped: contract ended before period",
				"run_id", run.ID,
				"employee_id", emp.ID,
				"contract_end_date", emp.ContractEndDate.Format("2006-01-02"),
			)
			continue
		}
		batch.employees = append(batch.employees, emp)
		ids = append(ids, emp.ID)
	}

	if batch.payGrades, err = s.EmployeeRepo.ListPayGrades(ctx); err != nil {
		return batch, err
	}

	bonuses, err := s.CompensationRepo.ListApprovedSigningBonuses(ctx, ids)
	if err != nil {
		return batch, err
	}
	benefits, err := s.CompensationRepo.ListApprovedTerminationBenefits(ctx, ids)
	if err != nil {
		return batch, err
	}
	refunds, err := s.CompensationRepo.ListPendingRefunds(ctx, ids)
	if err != nil {
		return batch, err
	}
	penalties, err := s.CompensationRepo.ListPenalties(ctx, ids, periodStart, periodEnd)
	if err != nil {
		return batch, err
	}
	leaves, err := s.LeaveRepo.ListApprovedUnpaid(ctx, ids, periodStart, periodEnd)
	if err != nil {
		return batch, err
	}

	batch.bonuses = groupByEmployee(bonuses, func(b compensation.SigningBonus) string { return b.EmployeeID })
	batch.benefits = groupByEmployee(benefits, func(b compensation.TerminationBenefit) string { return b.EmployeeID })
	batch.refunds = groupByEmployee(refunds, func(r compensation.Refund) string { return r.EmployeeID })
	batch.penalties = groupByEmployee(penalties, func(p compensation.Penalty) string { return p.EmployeeID })
	batch.leaves = groupByEmployee(leaves, func(l leave.LeaveRequest) string { return l.EmployeeID })

	return batch, nil
}

func groupByEmployee[T any](items []T, key func(T) string) map[string][]T {
	grouped := make(map[string][]T)
	for _, item := range items {
		k := key(item)
		grouped[k] = append(grouped[k], item)
	}
	return grouped
}

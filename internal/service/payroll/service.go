package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payrollconfig"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/events"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Options are the tunables of the payroll engine, read from configuration.
type Options struct {
	MinimumWage    decimal.Decimal
	Workers        int
	SpikeThreshold decimal.Decimal
	LockWait       time.Duration
	Currency       string
	CompanyName    string
}

// Dependencies groups the collaborators of the payroll service.
type Dependencies struct {
	Transactor       database.Transactor
	RunRepo          payroll.RunRepository
	PayslipRepo      payroll.PayslipRepository
	ResolutionRepo   payroll.AnomalyResolutionRepository
	EmployeeRepo     employee.EmployeeRepository
	ConfigRepo       payrollconfig.PayrollConfigRepository
	CompensationRepo compensation.CompensationRepository
	LeaveRepo        leave.LeaveRepository
	Gate             compensation.CompensationService
	Audit            audit.AuditService
	Locker           lock.RunLocker
	Publisher        events.Publisher
	Storage          storage.FileStorage
	Logger           *slog.Logger
}

type PayrollServiceImpl struct {
	Dependencies
	opts       Options
	calculator *Calculator
	anomalies  singleflight.Group
	now        func() time.Time
}

func NewPayrollService(deps Dependencies, opts Options) payroll.PayrollService {
	return newPayrollService(deps, opts)
}

func newPayrollService(deps Dependencies, opts Options) *PayrollServiceImpl {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewNoopPublisher()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 10 * time.Second
	}
	return &PayrollServiceImpl{
		Dependencies: deps,
		opts:         opts,
		calculator:   NewCalculator(deps.Logger),
		now:          time.Now,
	}
}

// ========== LIFECYCLE ==========

func (s *PayrollServiceImpl) Initiate(ctx context.Context, req payroll.InitiateRunRequest) (payroll.RunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunResponse{}, err
	}

	complete, err := s.Gate.IsPhase0Complete(ctx)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	if !complete {
		return payroll.RunResponse{}, payroll.ErrPhase0Incomplete
	}

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.RunResponse{}, fmt.Errorf("failed to generate run id: %w", err)
	}

	run, err := s.RunRepo.UpsertForPeriod(ctx, payroll.Run{
		ID:            id.String(),
		Period:        req.PeriodStart,
		Entity:        req.Entity,
		Status:        payroll.RunStatusDraft,
		PaymentStatus: payroll.PaymentStatusPending,
		TotalNetPay:   decimal.Zero,
		SpecialistID:  req.SpecialistID,
		ManagerID:     req.ManagerID,
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}

	s.Logger.Info("Payroll run initiated",
		"run_id", run.ID,
		"period", run.Period.Format("2006-01"),
		"entity", run.Entity,
	)

	return payroll.NewRunResponse(run), nil
}

// transition applies action to the run with a compare-and-swap on its
// current status. mutate may record actors and reasons on the next state.
func (s *PayrollServiceImpl) transition(ctx context.Context, runID string, action payroll.Action, mutate func(*payroll.Run)) (payroll.Run, error) {
	current, err := s.RunRepo.GetByID(ctx, runID)
	if err != nil {
		return payroll.Run{}, err
	}

	nextStatus, err := payroll.NextStatus(current.Status, action)
	if err != nil {
		return payroll.Run{}, err
	}

	next := current
	next.Status = nextStatus
	if mutate != nil {
		mutate(&next)
	}

	return s.RunRepo.CompareAndSwap(ctx, current.Status, next)
}

func (s *PayrollServiceImpl) simpleTransition(ctx context.Context, req payroll.TransitionRequest, action payroll.Action, eventType string, requireReason bool, mutate func(*payroll.Run)) (payroll.RunResponse, error) {
	if err := req.Validate(requireReason); err != nil {
		return payroll.RunResponse{}, err
	}

	run, err := s.transition(ctx, req.RunID, action, mutate)
	if err != nil {
		return payroll.RunResponse{}, err
	}

	s.Logger.Info("Payroll run transitioned", "run_id", run.ID, "action", action, "status", run.Status, "actor_id", req.ActorID)
	s.publish(ctx, eventType, run, req.ActorID)

	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) SubmitForReview(ctx context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	return s.simpleTransition(ctx, req, payroll.ActionSubmit, events.RunSubmitted, false, func(r *payroll.Run) {
		r.SpecialistID = req.ActorID
	})
}

func (s *PayrollServiceImpl) ManagerApprove(ctx context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	return s.simpleTransition(ctx, req, payroll.ActionManagerApprove, events.RunManagerApprove, false, func(r *payroll.Run) {
		r.ManagerID = req.ActorID
	})
}

func (s *PayrollServiceImpl) ManagerReject(ctx context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	return s.simpleTransition(ctx, req, payroll.ActionManagerReject, events.RunRejected, true, func(r *payroll.Run) {
		r.ManagerID = req.ActorID
		r.RejectionReason = &req.Reason
		r.RejectedBy = &req.ActorID
	})
}

func (s *PayrollServiceImpl) FinanceApprove(ctx context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	return s.simpleTransition(ctx, req, payroll.ActionFinanceApprove, events.RunFinanceApprove, false, func(r *payroll.Run) {
		r.FinanceStaffID = &req.ActorID
	})
}

func (s *PayrollServiceImpl) FinanceReject(ctx context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	return s.simpleTransition(ctx, req, payroll.ActionFinanceReject, events.RunRejected, true, func(r *payroll.Run) {
		r.FinanceStaffID = &req.ActorID
		r.RejectionReason = &req.Reason
		r.RejectedBy = &req.ActorID
	})
}

func (s *PayrollServiceImpl) Unfreeze(ctx context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	if err := req.Validate(true); err != nil {
		return payroll.RunResponse{}, err
	}

	var run payroll.Run
	err := s.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		run, err = s.transition(ctx, req.RunID, payroll.ActionUnfreeze, func(r *payroll.Run) {
			r.UnlockReason = &req.Reason
			r.UnlockedBy = &req.ActorID
		})
		if err != nil {
			return err
		}

		// Payslips and paid sources keep their PAID markers.
		return s.Audit.Record(ctx, audit.ActionRunUnfrozen, "payroll_run", run.ID, req.ActorID,
			map[string]any{"status": payroll.RunStatusLocked},
			map[string]any{"status": run.Status, "reason": req.Reason},
		)
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}

	s.Logger.Warn("Payroll run unfrozen", "run_id", run.ID, "actor_id", req.ActorID, "reason", req.Reason)
	s.publish(ctx, events.RunUnfrozen, run, req.ActorID)

	return payroll.NewRunResponse(run), nil
}

// ========== EXECUTION ==========

func (s *PayrollServiceImpl) Execute(ctx context.Context, req payroll.TransitionRequest) (payroll.ExecuteResponse, error) {
	if err := req.Validate(false); err != nil {
		return payroll.ExecuteResponse{}, err
	}

	var (
		run  payroll.Run
		paid int64
	)
	err := s.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		run, err = s.transition(ctx, req.RunID, payroll.ActionExecute, func(r *payroll.Run) {
			r.PaymentStatus = payroll.PaymentStatusPaid
			if r.FinanceStaffID == nil {
				r.FinanceStaffID = &req.ActorID
			}
		})
		if err != nil {
			return err
		}

		paid, err = s.PayslipRepo.MarkPaidByRun(ctx, run.ID)
		return err
	})
	if err != nil {
		return payroll.ExecuteResponse{}, err
	}

	// The run is locked and paid; source records are consumed one by one so a
	// single failure never undoes the lock. Reconcile retries what failed.
	result, err := s.sweep(ctx, run.ID)
	if err != nil {
		s.Logger.Error("Payment sweep could not start", "run_id", run.ID, "error", err)
	}

	s.Logger.Info("Payroll run executed",
		"run_id", run.ID,
		"payslips_paid", paid,
		"bonuses_paid", result.BonusesPaid,
		"benefits_paid", result.BenefitsPaid,
		"refunds_paid", result.RefundsPaid,
		"failures", result.Failures,
	)
	s.publish(ctx, events.RunExecuted, run, req.ActorID)

	return payroll.ExecuteResponse{
		Run:            payroll.NewRunResponse(run),
		PayslipsPaid:   paid,
		Reconciliation: result,
	}, nil
}

// Reconcile re-runs the payment sweep of a locked run.
func (s *PayrollServiceImpl) Reconcile(ctx context.Context, req payroll.TransitionRequest) (payroll.SweepResult, error) {
	if err := req.Validate(false); err != nil {
		return payroll.SweepResult{}, err
	}

	run, err := s.RunRepo.GetByID(ctx, req.RunID)
	if err != nil {
		return payroll.SweepResult{}, err
	}
	if run.Status != payroll.RunStatusLocked {
		return payroll.SweepResult{}, fmt.Errorf("%w: cannot reconcile a run in %s", payroll.ErrInvalidTransition, run.Status)
	}

	return s.sweep(ctx, run.ID)
}

// sweep marks every bonus, benefit and refund paid by the run's payslips as
// PAID, skipping sources a manual edit no longer covers. Each update only
// applies while the record is still unpaid, so repeated sweeps never pay
// anything twice.
func (s *PayrollServiceImpl) sweep(ctx context.Context, runID string) (payroll.SweepResult, error) {
	var result payroll.SweepResult

	slips, err := s.PayslipRepo.ListByRun(ctx, runID)
	if err != nil {
		return result, err
	}

	seen := make(map[string]struct{})
	apply := func(kind payroll.ContributionKind, sourceID string, mark func(context.Context, string, string) (bool, error), counter *int) {
		key := string(kind) + ":" + sourceID
		if sourceID == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		updated, err := mark(ctx, sourceID, runID)
		switch {
		case err != nil:
			result.Failures++
			s.Logger.Error("Failed to mark source paid", "run_id", runID, "kind", kind, "source_id", sourceID, "error", err)
		case updated:
			*counter++
		default:
			result.AlreadyPaid++
		}
	}

	for _, slip := range slips {
		for _, c := range coveredSources(slip.Earnings.Bonuses, payroll.KindSigningBonus) {
			apply(c.Kind, c.SourceID, s.CompensationRepo.MarkSigningBonusPaid, &result.BonusesPaid)
		}
		for _, c := range coveredSources(slip.Earnings.Benefits, payroll.KindTerminationBenefit) {
			apply(c.Kind, c.SourceID, s.CompensationRepo.MarkTerminationBenefitPaid, &result.BenefitsPaid)
		}
		for _, c := range coveredSources(slip.Earnings.Refunds, payroll.KindRefund) {
			apply(c.Kind, c.SourceID, s.CompensationRepo.MarkRefundPaid, &result.RefundsPaid)
		}
	}

	return result, nil
}

// coveredSources returns the sourced items of kind that the section total
// still pays for, in payslip order. A manual edit that cuts a section below
// its sourced amount leaves the uncovered records unpaid for a later run.
func coveredSources(items []payroll.Contribution, kind payroll.ContributionKind) []payroll.Contribution {
	total := payroll.SumContributions(items)
	consumed := decimal.Zero

	var covered []payroll.Contribution
	for _, c := range items {
		if c.Kind != kind || c.SourceID == "" {
			continue
		}
		if consumed.Add(c.Amount).GreaterThan(total) {
			continue
		}
		consumed = consumed.Add(c.Amount)
		covered = append(covered, c)
	}
	return covered
}

// ========== EVENTS ==========

// publish never fails the caller; the transition it reports has committed.
func (s *PayrollServiceImpl) publish(ctx context.Context, eventType string, run payroll.Run, actorID string) {
	event := events.RunEvent{
		Type:       eventType,
		RunID:      run.ID,
		Period:     run.Period.Format("2006-01-02"),
		Entity:     run.Entity,
		Status:     string(run.Status),
		ActorID:    actorID,
		TotalNet:   run.TotalNetPay.StringFixed(2),
		OccurredAt: s.now().UTC(),
	}
	if err := s.Publisher.PublishRunEvent(ctx, event); err != nil {
		s.Logger.Warn("Failed to publish run event", "run_id", run.ID, "type", eventType, "error", err)
	}
}

package payroll

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payrollconfig"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/events"
)

type inlineTx struct{}

func (inlineTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ========== RUNS ==========

type memRunRepo struct {
	mu   sync.Mutex
	runs map[string]payroll.Run
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[string]payroll.Run)}
}

func (r *memRunRepo) UpsertForPeriod(_ context.Context, run payroll.Run) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.runs {
		if existing.Period.Equal(run.Period) && existing.Entity == run.Entity {
			existing.Status = payroll.RunStatusDraft
			existing.PaymentStatus = payroll.PaymentStatusPending
			existing.SpecialistID = run.SpecialistID
			existing.ManagerID = run.ManagerID
			existing.FinanceStaffID = nil
			existing.RejectionReason = nil
			existing.RejectedBy = nil
			existing.UnlockReason = nil
			existing.UnlockedBy = nil
			r.runs[id] = existing
			return existing, nil
		}
	}
	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	r.runs[run.ID] = run
	return run, nil
}

func (r *memRunRepo) GetByID(_ context.Context, id string) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	return run, nil
}

func (r *memRunRepo) sorted() []payroll.Run {
	out := make([]payroll.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.After(out[j].Period) })
	return out
}

func (r *memRunRepo) GetCurrent(_ context.Context, entity *string) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, run := range r.sorted() {
		if entity == nil || run.Entity == *entity {
			return run, nil
		}
	}
	return payroll.Run{}, payroll.ErrRunNotFound
}

func (r *memRunRepo) List(_ context.Context, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []payroll.Run
	for _, run := range r.sorted() {
		if filter.Entity != nil && run.Entity != *filter.Entity {
			continue
		}
		if filter.Status != nil && run.Status != *filter.Status {
			continue
		}
		out = append(out, run)
	}
	return out, int64(len(out)), nil
}

func (r *memRunRepo) ListByStatuses(_ context.Context, statuses []payroll.RunStatus) ([]payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []payroll.Run
	for _, run := range r.sorted() {
		for _, s := range statuses {
			if run.Status == s {
				out = append(out, run)
			}
		}
	}
	return out, nil
}

func (r *memRunRepo) CompareAndSwap(_ context.Context, expected payroll.RunStatus, next payroll.Run) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.runs[next.ID]
	if !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	if stored.Status != expected {
		return payroll.Run{}, payroll.ErrConcurrentModification
	}
	next.UpdatedAt = time.Now()
	r.runs[next.ID] = next
	return next, nil
}

func (r *memRunRepo) put(run payroll.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
}

// ========== PAYSLIPS ==========

type memPayslipRepo struct {
	mu       sync.Mutex
	payslips map[string]payroll.Payslip
	order    []string
}

func newMemPayslipRepo() *memPayslipRepo {
	return &memPayslipRepo{payslips: make(map[string]payroll.Payslip)}
}

func (r *memPayslipRepo) ReplaceForRun(_ context.Context, runID string, slips []payroll.Payslip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	for _, id := range r.order {
		if r.payslips[id].RunID == runID {
			delete(r.payslips, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	for _, p := range slips {
		r.payslips[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return nil
}

func (r *memPayslipRepo) ListByRun(_ context.Context, runID string) ([]payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []payroll.Payslip
	for _, id := range r.order {
		if p := r.payslips[id]; p.RunID == runID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPayslipRepo) GetByID(_ context.Context, id string) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payslips[id]
	if !ok {
		return payroll.Payslip{}, payroll.ErrPayslipNotFound
	}
	return p, nil
}

func (r *memPayslipRepo) Update(_ context.Context, p payroll.Payslip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payslips[p.ID]; !ok {
		return payroll.ErrPayslipNotFound
	}
	r.payslips[p.ID] = p
	return nil
}

func (r *memPayslipRepo) MarkPaidByRun(_ context.Context, runID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, p := range r.payslips {
		if p.RunID == runID && p.PaymentStatus != payroll.PaymentStatusPaid {
			p.PaymentStatus = payroll.PaymentStatusPaid
			r.payslips[id] = p
			n++
		}
	}
	return n, nil
}

func (r *memPayslipRepo) LatestForEmployee(_ context.Context, employeeID, excludeRunID string) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		latest payroll.Payslip
		found  bool
	)
	for _, id := range r.order {
		p := r.payslips[id]
		if p.EmployeeID != employeeID || p.RunID == excludeRunID {
			continue
		}
		if !found || p.CreatedAt.After(latest.CreatedAt) {
			latest, found = p, true
		}
	}
	if !found {
		return payroll.Payslip{}, payroll.ErrPayslipNotFound
	}
	return latest, nil
}

func (r *memPayslipRepo) add(p payroll.Payslip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payslips[p.ID] = p
	r.order = append(r.order, p.ID)
}

// gatedPayslipRepo parks the first ListByRun until release is closed, then
// reports the context it ran under.
type gatedPayslipRepo struct {
	*memPayslipRepo
	entered  chan struct{}
	release  chan struct{}
	observed chan error
	once     sync.Once
}

func newGatedPayslipRepo(inner *memPayslipRepo) *gatedPayslipRepo {
	return &gatedPayslipRepo{
		memPayslipRepo: inner,
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
		observed:       make(chan error, 1),
	}
}

func (r *gatedPayslipRepo) ListByRun(ctx context.Context, runID string) ([]payroll.Payslip, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
		r.observed <- ctx.Err()
	}
	return r.memPayslipRepo.ListByRun(ctx, runID)
}

type memResolutionRepo struct {
	mu          sync.Mutex
	resolutions map[string]payroll.AnomalyResolution
}

func newMemResolutionRepo() *memResolutionRepo {
	return &memResolutionRepo{resolutions: make(map[string]payroll.AnomalyResolution)}
}

func (r *memResolutionRepo) Upsert(_ context.Context, res payroll.AnomalyResolution) (payroll.AnomalyResolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions[res.PayslipID] = res
	return res, nil
}

func (r *memResolutionRepo) Delete(_ context.Context, payslipID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resolutions, payslipID)
	return nil
}

func (r *memResolutionRepo) ListByPayslipIDs(_ context.Context, ids []string) (map[string]payroll.AnomalyResolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]payroll.AnomalyResolution)
	for _, id := range ids {
		if res, ok := r.resolutions[id]; ok {
			out[id] = res
		}
	}
	return out, nil
}

// ========== DIRECTORY AND CONFIG ==========

type fakeEmployeeRepo struct {
	employees   []employee.Employee
	payGrades   map[string]employee.PayGrade
	departments map[string]bool
}

func (r *fakeEmployeeRepo) ListActive(_ context.Context, department *string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range r.employees {
		if e.Status != employee.StatusActive {
			continue
		}
		if department != nil && e.Department != *department {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeEmployeeRepo) GetByIDs(_ context.Context, ids []string) (map[string]employee.Employee, error) {
	out := make(map[string]employee.Employee)
	for _, e := range r.employees {
		for _, id := range ids {
			if e.ID == id {
				out[id] = e
			}
		}
	}
	return out, nil
}

func (r *fakeEmployeeRepo) ListPayGrades(context.Context) (map[string]employee.PayGrade, error) {
	return r.payGrades, nil
}

func (r *fakeEmployeeRepo) DepartmentExists(_ context.Context, name string) (bool, error) {
	return r.departments[name], nil
}

type fakeConfigRepo struct {
	snapshot payrollconfig.Snapshot
}

func (r *fakeConfigRepo) LoadApproved(context.Context) (payrollconfig.Snapshot, error) {
	return r.snapshot, nil
}

type fakeLeaveRepo struct {
	leaves []leave.LeaveRequest
}

func (r *fakeLeaveRepo) ListApprovedUnpaid(_ context.Context, _ []string, _, _ time.Time) ([]leave.LeaveRequest, error) {
	return r.leaves, nil
}

// ========== COMPENSATION ==========

type fakeCompensationRepo struct {
	compensation.CompensationRepository

	mu         sync.Mutex
	bonuses    map[string]*compensation.SigningBonus
	benefits   map[string]*compensation.TerminationBenefit
	refunds    map[string]*compensation.Refund
	penalties  []compensation.Penalty
	paidMarks  map[string]int
	refundFail error
}

func newFakeCompensationRepo() *fakeCompensationRepo {
	return &fakeCompensationRepo{
		bonuses:   make(map[string]*compensation.SigningBonus),
		benefits:  make(map[string]*compensation.TerminationBenefit),
		refunds:   make(map[string]*compensation.Refund),
		paidMarks: make(map[string]int),
	}
}

func (r *fakeCompensationRepo) ListApprovedSigningBonuses(context.Context, []string) ([]compensation.SigningBonus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []compensation.SigningBonus
	for _, b := range r.bonuses {
		if b.Status == compensation.DecisionApproved {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCompensationRepo) ListApprovedTerminationBenefits(context.Context, []string) ([]compensation.TerminationBenefit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []compensation.TerminationBenefit
	for _, b := range r.benefits {
		if b.Status == compensation.DecisionApproved {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCompensationRepo) ListPendingRefunds(context.Context, []string) ([]compensation.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []compensation.Refund
	for _, rf := range r.refunds {
		if rf.Status == compensation.RefundStatusPending {
			out = append(out, *rf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCompensationRepo) ListPenalties(context.Context, []string, time.Time, time.Time) ([]compensation.Penalty, error) {
	return r.penalties, nil
}

func (r *fakeCompensationRepo) MarkSigningBonusPaid(_ context.Context, id, runID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bonuses[id]
	if b == nil || b.Status != compensation.DecisionApproved {
		return false, nil
	}
	b.Status, b.PaidInRunID = compensation.DecisionPaid, &runID
	r.paidMarks[id]++
	return true, nil
}

func (r *fakeCompensationRepo) MarkTerminationBenefitPaid(_ context.Context, id, runID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.benefits[id]
	if b == nil || b.Status != compensation.DecisionApproved {
		return false, nil
	}
	b.Status, b.PaidInRunID = compensation.DecisionPaid, &runID
	r.paidMarks[id]++
	return true, nil
}

func (r *fakeCompensationRepo) MarkRefundPaid(_ context.Context, id, runID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refundFail != nil {
		return false, r.refundFail
	}
	rf := r.refunds[id]
	if rf == nil || rf.Status != compensation.RefundStatusPending {
		return false, nil
	}
	rf.Status, rf.PaidInRunID = compensation.RefundStatusPaid, &runID
	r.paidMarks[id]++
	return true, nil
}

// gateStub reports a fixed Phase 0 state.
type gateStub struct {
	compensation.CompensationService
	complete bool
}

func (g *gateStub) IsPhase0Complete(context.Context) (bool, error) {
	return g.complete, nil
}

// ========== AUDIT AND EVENTS ==========

type fakeAudit struct {
	mu      sync.Mutex
	actions []audit.Action
	ids     []string
}

func (a *fakeAudit) Record(_ context.Context, action audit.Action, _, entityID, _ string, _, _ any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	a.ids = append(a.ids, entityID)
	return nil
}

func (a *fakeAudit) List(context.Context, audit.AuditFilter) ([]audit.EntryResponse, error) {
	return nil, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.RunEvent
	err    error
}

func (p *recordingPublisher) PublishRunEvent(_ context.Context, e events.RunEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errBrokerDown = errors.New("broker unavailable")

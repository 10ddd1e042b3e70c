package payroll

import "context"

type RunRepository interface {
	// UpsertForPeriod creates the run for (period, entity) or, when one
	// exists, resets it to DRAFT with the new participants.
	UpsertForPeriod(ctx context.Context, run Run) (Run, error)
	GetByID(ctx context.Context, id string) (Run, error)
	GetCurrent(ctx context.Context, entity *string) (Run, error)
	List(ctx context.Context, filter RunFilter) ([]Run, int64, error)
	ListByStatuses(ctx context.Context, statuses []RunStatus) ([]Run, error)

	// CompareAndSwap writes next only while the stored status still equals
	// expected. It returns ErrConcurrentModification otherwise.
	CompareAndSwap(ctx context.Context, expected RunStatus, next Run) (Run, error)
}

type PayslipRepository interface {
	// ReplaceForRun deletes every payslip of the run and inserts payslips.
	ReplaceForRun(ctx context.Context, runID string, payslips []Payslip) error
	ListByRun(ctx context.Context, runID string) ([]Payslip, error)
	GetByID(ctx context.Context, id string) (Payslip, error)
	Update(ctx context.Context, payslip Payslip) error
	MarkPaidByRun(ctx context.Context, runID string) (int64, error)

	// LatestForEmployee returns the most recent payslip of the employee in any
	// run other than excludeRunID, or ErrPayslipNotFound.
	LatestForEmployee(ctx context.Context, employeeID string, excludeRunID string) (Payslip, error)
}

type AnomalyResolutionRepository interface {
	Upsert(ctx context.Context, resolution AnomalyResolution) (AnomalyResolution, error)
	Delete(ctx context.Context, payslipID string) error
	ListByPayslipIDs(ctx context.Context, payslipIDs []string) (map[string]AnomalyResolution, error)
}

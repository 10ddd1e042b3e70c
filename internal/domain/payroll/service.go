package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/export"
)

type PayrollService interface {
	// Lifecycle
	Initiate(ctx context.Context, req InitiateRunRequest) (RunResponse, error)
	Calculate(ctx context.Context, req TransitionRequest) (RunResponse, error)
	SubmitForReview(ctx context.Context, req TransitionRequest) (RunResponse, error)
	ManagerApprove(ctx context.Context, req TransitionRequest) (RunResponse, error)
	ManagerReject(ctx context.Context, req TransitionRequest) (RunResponse, error)
	FinanceApprove(ctx context.Context, req TransitionRequest) (RunResponse, error)
	FinanceReject(ctx context.Context, req TransitionRequest) (RunResponse, error)
	Execute(ctx context.Context, req TransitionRequest) (ExecuteResponse, error)
	Reconcile(ctx context.Context, req TransitionRequest) (SweepResult, error)
	Unfreeze(ctx context.Context, req TransitionRequest) (RunResponse, error)

	// Runs
	GetRun(ctx context.Context, id string) (RunResponse, error)
	CurrentRun(ctx context.Context, entity *string) (RunResponse, error)
	RunHistory(ctx context.Context, filter RunFilter) (ListRunResponse, error)

	// Payslips
	ListPayslips(ctx context.Context, runID string) ([]PayslipResponse, error)
	GetPayslip(ctx context.Context, id string) (PayslipResponse, error)
	EditPayslip(ctx context.Context, req EditPayslipRequest) (PayslipResponse, error)

	// Anomalies
	ListAnomalies(ctx context.Context, runID string) ([]AnomalyResponse, error)
	ResolveAnomaly(ctx context.Context, req ResolveAnomalyRequest) error
	UnresolveAnomaly(ctx context.Context, payslipID string) error

	// Reports and export
	SummaryReport(ctx context.Context, runID string) (SummaryReportResponse, error)
	TaxReport(ctx context.Context, runID string) (TaxReportResponse, error)
	BankTransfer(ctx context.Context, runID string) (export.BankTransferDocument, error)
	ArchiveBankTransfer(ctx context.Context, runID string) (ArchiveResponse, error)

	// Jobs
	ScanAnomalies(ctx context.Context) error
}

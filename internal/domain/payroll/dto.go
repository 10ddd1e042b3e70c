package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== RUN DTOs ==========

type InitiateRunRequest struct {
	Period       string    `json:"period"`
	Entity       string    `json:"entity"`
	ManagerID    string    `json:"manager_id"`
	SpecialistID string    `json:"-"`
	PeriodStart  time.Time `json:"-"`
}

func (r *InitiateRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Period) {
		errs = errs.Add("period", "is required")
	} else if start, ok := validator.ParsePeriod(r.Period); !ok {
		errs = errs.Add("period", "must be YYYY-MM or YYYY-MM-DD")
	} else {
		r.PeriodStart = start
	}
	if validator.IsEmpty(r.Entity) {
		errs = errs.Add("entity", "is required")
	}
	if validator.IsEmpty(r.ManagerID) {
		errs = errs.Add("manager_id", "is required")
	}
	if validator.IsEmpty(r.SpecialistID) {
		errs = errs.Add("specialist_id", "is required")
	}

	return errs.Err()
}

// TransitionRequest drives every run lifecycle step. Reason is required for
// rejections and unfreeze.
type TransitionRequest struct {
	RunID   string `json:"-"`
	ActorID string `json:"-"`
	Reason  string `json:"reason,omitempty"`
}

func (r *TransitionRequest) Validate(requireReason bool) error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RunID) {
		errs = errs.Add("run_id", "is required")
	}
	if validator.IsEmpty(r.ActorID) {
		errs = errs.Add("actor_id", "is required")
	}
	if requireReason && validator.IsEmpty(r.Reason) {
		errs = errs.Add("reason", "is required")
	}

	return errs.Err()
}

type RunFilter struct {
	Entity *string
	Status *RunStatus
	Page   int
	Limit  int
}

func (f *RunFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

type RunResponse struct {
	ID              string          `json:"id"`
	Period          string          `json:"period"`
	Entity          string          `json:"entity"`
	Status          RunStatus       `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	EmployeeCount   int             `json:"employee_count"`
	ExceptionCount  int             `json:"exception_count"`
	TotalNetPay     decimal.Decimal `json:"total_net_pay"`
	SpecialistID    string          `json:"specialist_id"`
	ManagerID       string          `json:"manager_id"`
	FinanceStaffID  *string         `json:"finance_staff_id,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	RejectedBy      *string         `json:"rejected_by,omitempty"`
	UnlockReason    *string         `json:"unlock_reason,omitempty"`
	UnlockedBy      *string         `json:"unlocked_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func NewRunResponse(r Run) RunResponse {
	return RunResponse{
		ID:              r.ID,
		Period:          r.Period.Format("2006-01-02"),
		Entity:          r.Entity,
		Status:          r.Status,
		PaymentStatus:   r.PaymentStatus,
		EmployeeCount:   r.EmployeeCount,
		ExceptionCount:  r.ExceptionCount,
		TotalNetPay:     r.TotalNetPay,
		SpecialistID:    r.SpecialistID,
		ManagerID:       r.ManagerID,
		FinanceStaffID:  r.FinanceStaffID,
		RejectionReason: r.RejectionReason,
		RejectedBy:      r.RejectedBy,
		UnlockReason:    r.UnlockReason,
		UnlockedBy:      r.UnlockedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type ListRunResponse struct {
	Data       []RunResponse `json:"data"`
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
}

type ExecuteResponse struct {
	Run            RunResponse `json:"run"`
	PayslipsPaid   int64       `json:"payslips_paid"`
	Reconciliation SweepResult `json:"reconciliation"`
}

// SweepResult counts the bonus, benefit and refund records moved to PAID
// by one execute or reconcile pass.
type SweepResult struct {
	BonusesPaid  int `json:"bonuses_paid"`
	BenefitsPaid int `json:"benefits_paid"`
	RefundsPaid  int `json:"refunds_paid"`
	AlreadyPaid  int `json:"already_paid"`
	Failures     int `json:"failures"`
}

// ========== PAYSLIP DTOs ==========

// EditPayslipRequest overrides payslip fields while the run is editable.
// List fields take the new total for that section.
type EditPayslipRequest struct {
	PayslipID            string           `json:"-"`
	ActorID              string           `json:"-"`
	BaseSalary           *decimal.Decimal `json:"base_salary,omitempty"`
	GrossSalary          *decimal.Decimal `json:"gross_salary,omitempty"`
	Allowances           *decimal.Decimal `json:"allowances,omitempty"`
	Bonuses              *decimal.Decimal `json:"bonuses,omitempty"`
	Benefits             *decimal.Decimal `json:"benefits,omitempty"`
	Refunds              *decimal.Decimal `json:"refunds,omitempty"`
	Taxes                *decimal.Decimal `json:"taxes,omitempty"`
	Insurance            *decimal.Decimal `json:"insurance,omitempty"`
	PenaltiesDeducted    *decimal.Decimal `json:"penalties_deducted,omitempty"`
	UnpaidLeaveDeduction *decimal.Decimal `json:"unpaid_leave_deduction,omitempty"`
}

func (r *EditPayslipRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.PayslipID) {
		errs = errs.Add("payslip_id", "is required")
	}

	fields := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"base_salary", r.BaseSalary},
		{"gross_salary", r.GrossSalary},
		{"allowances", r.Allowances},
		{"bonuses", r.Bonuses},
		{"benefits", r.Benefits},
		{"refunds", r.Refunds},
		{"taxes", r.Taxes},
		{"insurance", r.Insurance},
		{"penalties_deducted", r.PenaltiesDeducted},
		{"unpaid_leave_deduction", r.UnpaidLeaveDeduction},
	}
	set := 0
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		set++
		if f.value.IsNegative() {
			errs = errs.Add(f.name, "must be non-negative")
		}
	}
	if set == 0 {
		errs = errs.Add("body", "at least one field must be provided")
	}

	return errs.Err()
}

type PayslipResponse struct {
	ID                string            `json:"id"`
	RunID             string            `json:"run_id"`
	EmployeeID        string            `json:"employee_id"`
	EmployeeName      string            `json:"employee_name"`
	Department        string            `json:"department"`
	BankName          string            `json:"bank_name"`
	BankAccountNumber string            `json:"bank_account_number"`
	ProrationFactor   decimal.Decimal   `json:"proration_factor"`
	EarningsDetails   EarningsDetails   `json:"earnings_details"`
	DeductionsDetails DeductionsDetails `json:"deductions_details"`
	TotalGrossSalary  decimal.Decimal   `json:"total_gross_salary"`
	TotalDeductions   decimal.Decimal   `json:"total_deductions"`
	NetPay            decimal.Decimal   `json:"net_pay"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func NewPayslipResponse(p Payslip) PayslipResponse {
	return PayslipResponse{
		ID:                p.ID,
		RunID:             p.RunID,
		EmployeeID:        p.EmployeeID,
		EmployeeName:      p.EmployeeName,
		Department:        p.Department,
		BankName:          p.BankName,
		BankAccountNumber: p.BankAccountNumber,
		ProrationFactor:   p.ProrationFactor,
		EarningsDetails:   p.Earnings,
		DeductionsDetails: p.Deductions,
		TotalGrossSalary:  p.TotalGrossSalary,
		TotalDeductions:   p.TotalDeductions,
		NetPay:            p.NetPay,
		PaymentStatus:     p.PaymentStatus,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// ========== ANOMALY DTOs ==========

type ResolveAnomalyRequest struct {
	PayslipID string `json:"-"`
	ActorID   string `json:"-"`
	Notes     string `json:"notes"`
}

func (r *ResolveAnomalyRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.PayslipID) {
		errs = errs.Add("payslip_id", "is required")
	}
	if validator.IsEmpty(r.Notes) {
		errs = errs.Add("notes", "is required")
	}

	return errs.Err()
}

type AnomalyResponse struct {
	PayslipID    string          `json:"payslip_id"`
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	NetPay       decimal.Decimal `json:"net_pay"`
	Reasons      []string        `json:"reasons"`
	Resolved     bool            `json:"resolved"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy   *string         `json:"resolved_by,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
}

// ========== REPORT DTOs ==========

type CategoryBreakdown struct {
	BaseSalary   decimal.Decimal `json:"base_salary"`
	GrossSalary  decimal.Decimal `json:"gross_salary"`
	Allowances   decimal.Decimal `json:"allowances"`
	Bonuses      decimal.Decimal `json:"bonuses"`
	Benefits     decimal.Decimal `json:"benefits"`
	Refunds      decimal.Decimal `json:"refunds"`
	Taxes        decimal.Decimal `json:"taxes"`
	Insurance    decimal.Decimal `json:"insurance"`
	Penalties    decimal.Decimal `json:"penalties"`
	UnpaidLeaves decimal.Decimal `json:"unpaid_leaves"`
}

type SummaryReportResponse struct {
	RunID           string            `json:"run_id"`
	Period          string            `json:"period"`
	Entity          string            `json:"entity"`
	Status          RunStatus         `json:"status"`
	EmployeeCount   int               `json:"employee_count"`
	ExceptionCount  int               `json:"exception_count"`
	TotalGross      decimal.Decimal   `json:"total_gross"`
	TotalDeductions decimal.Decimal   `json:"total_deductions"`
	TotalNet        decimal.Decimal   `json:"total_net"`
	Breakdown       CategoryBreakdown `json:"breakdown"`
}

type TaxLine struct {
	Name   string           `json:"name"`
	Rate   *decimal.Decimal `json:"rate,omitempty"`
	Amount decimal.Decimal  `json:"amount"`
}

type TaxReportRow struct {
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	BaseSalary   decimal.Decimal `json:"base_salary"`
	Taxes        []TaxLine       `json:"taxes"`
	TotalTax     decimal.Decimal `json:"total_tax"`
}

type TaxReportResponse struct {
	RunID    string          `json:"run_id"`
	Period   string          `json:"period"`
	Entity   string          `json:"entity"`
	Rows     []TaxReportRow  `json:"rows"`
	TotalTax decimal.Decimal `json:"total_tax"`
}

type ArchiveResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

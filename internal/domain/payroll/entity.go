package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type RunStatus string

const (
	RunStatusDraft                  RunStatus = "DRAFT"
	RunStatusUnderReview            RunStatus = "UNDER_REVIEW"
	RunStatusPendingFinanceApproval RunStatus = "PENDING_FINANCE_APPROVAL"
	RunStatusApproved               RunStatus = "APPROVED"
	RunStatusLocked                 RunStatus = "LOCKED"
	RunStatusRejected               RunStatus = "REJECTED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// Run is one payroll cycle for a (period, entity) pair.
type Run struct {
	ID             string
	Period         time.Time
	Entity         string
	Status         RunStatus
	PaymentStatus  PaymentStatus
	EmployeeCount  int
	ExceptionCount int
	TotalNetPay    decimal.Decimal

	SpecialistID    string
	ManagerID       string
	FinanceStaffID  *string
	RejectionReason *string
	RejectedBy      *string
	UnlockReason    *string
	UnlockedBy      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContributionKind tags one earning or deduction line.
type ContributionKind string

const (
	KindAllowance          ContributionKind = "ALLOWANCE"
	KindSigningBonus       ContributionKind = "SIGNING_BONUS"
	KindTerminationBenefit ContributionKind = "TERMINATION_BENEFIT"
	KindRefund             ContributionKind = "REFUND"
	KindTax                ContributionKind = "TAX"
	KindInsurance          ContributionKind = "INSURANCE"
	KindPenalty            ContributionKind = "PENALTY"
	KindUnpaidLeave        ContributionKind = "UNPAID_LEAVE"
	KindManualAdjustment   ContributionKind = "MANUAL_ADJUSTMENT"
)

// Contribution is a single sourced amount on a payslip. SourceID points back
// at the record it came from so execution can reconcile it.
type Contribution struct {
	Kind         ContributionKind `json:"kind"`
	SourceID     string           `json:"source_id,omitempty"`
	Label        string           `json:"label"`
	Amount       decimal.Decimal  `json:"amount"`
	Rate         *decimal.Decimal `json:"rate,omitempty"`
	EmployerRate *decimal.Decimal `json:"employer_rate,omitempty"`
	Days         int              `json:"days,omitempty"`
}

type EarningsDetails struct {
	BaseSalary  decimal.Decimal `json:"base_salary"`
	GrossSalary decimal.Decimal `json:"gross_salary"`
	Allowances  []Contribution  `json:"allowances"`
	Bonuses     []Contribution  `json:"bonuses"`
	Benefits    []Contribution  `json:"benefits"`
	Refunds     []Contribution  `json:"refunds"`
}

type PenaltiesDetails struct {
	Items          []Contribution  `json:"items"`
	AmountDeducted decimal.Decimal `json:"amount_deducted"`
}

type UnpaidLeaveDetails struct {
	Days      int             `json:"days"`
	Deduction decimal.Decimal `json:"deduction"`
	Details   []Contribution  `json:"details"`
}

type DeductionsDetails struct {
	Taxes        []Contribution     `json:"taxes"`
	Insurances   []Contribution     `json:"insurances"`
	Penalties    PenaltiesDetails   `json:"penalties"`
	UnpaidLeaves UnpaidLeaveDetails `json:"unpaid_leaves"`
}

type Payslip struct {
	ID                string
	RunID             string
	EmployeeID        string
	EmployeeName      string
	Department        string
	BankName          string
	BankAccountNumber string
	ProrationFactor   decimal.Decimal
	Earnings          EarningsDetails
	Deductions        DeductionsDetails
	TotalGrossSalary  decimal.Decimal
	TotalDeductions   decimal.Decimal
	NetPay            decimal.Decimal
	PaymentStatus     PaymentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SumContributions adds up the amounts of items.
func SumContributions(items []Contribution) decimal.Decimal {
	total := decimal.Zero
	for _, c := range items {
		total = total.Add(c.Amount)
	}
	return total
}

func (e EarningsDetails) Total() decimal.Decimal {
	return e.GrossSalary.
		Add(SumContributions(e.Allowances)).
		Add(SumContributions(e.Bonuses)).
		Add(SumContributions(e.Benefits)).
		Add(SumContributions(e.Refunds))
}

func (d DeductionsDetails) Total() decimal.Decimal {
	return SumContributions(d.Taxes).
		Add(SumContributions(d.Insurances)).
		Add(d.Penalties.AmountDeducted).
		Add(d.UnpaidLeaves.Deduction)
}

// Recompute derives gross, deductions and net from the detail sections.
// NetPay always equals TotalGrossSalary minus TotalDeductions afterwards.
func (p *Payslip) Recompute() {
	p.TotalGrossSalary = p.Earnings.Total()
	p.TotalDeductions = p.Deductions.Total()
	p.NetPay = p.TotalGrossSalary.Sub(p.TotalDeductions)
}

// AnomalyResolution is the durable reviewer annotation on a payslip's anomaly.
// It never changes payslip data.
type AnomalyResolution struct {
	PayslipID  string
	ResolvedAt time.Time
	ResolvedBy string
	Notes      string
}

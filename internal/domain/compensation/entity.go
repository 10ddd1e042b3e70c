package compensation

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionStatus is the payroll specialist's decision on a bonus or benefit.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "PENDING"
	DecisionApproved DecisionStatus = "APPROVED"
	DecisionRejected DecisionStatus = "REJECTED"
	DecisionPaid     DecisionStatus = "PAID"
)

// ItemKind names the two kinds of Phase 0 items.
type ItemKind string

const (
	ItemKindSigningBonus       ItemKind = "signing-bonus"
	ItemKindTerminationBenefit ItemKind = "termination-benefit"
)

func (k ItemKind) IsValid() bool {
	return k == ItemKindSigningBonus || k == ItemKindTerminationBenefit
}

type SigningBonus struct {
	ID          string
	EmployeeID  string
	Name        string
	Amount      decimal.NullDecimal
	Status      DecisionStatus
	DecidedBy   *string
	DecidedAt   *time.Time
	PaidInRunID *string
	UpdatedAt   time.Time
}

type BenefitKind string

const (
	BenefitKindTermination BenefitKind = "TERMINATION"
	BenefitKindResignation BenefitKind = "RESIGNATION"
)

type TerminationBenefit struct {
	ID          string
	EmployeeID  string
	Name        string
	Kind        BenefitKind
	Amount      decimal.NullDecimal
	Status      DecisionStatus
	DecidedBy   *string
	DecidedAt   *time.Time
	PaidInRunID *string
	UpdatedAt   time.Time
}

type RefundStatus string

const (
	RefundStatusPending RefundStatus = "PENDING"
	RefundStatusPaid    RefundStatus = "PAID"
)

// Refund is an amount already approved for repayment to an employee by the
// claims/disputes chain. It is owed from the moment it exists as PENDING.
type Refund struct {
	ID          string
	EmployeeID  string
	Description string
	Amount      decimal.NullDecimal
	Status      RefundStatus
	PaidInRunID *string
}

type Penalty struct {
	ID         string
	EmployeeID string
	Reason     string
	Amount     decimal.NullDecimal
	Date       time.Time
}

// Sources groups the per-employee compensation records a calculation batch consumes.
type Sources struct {
	SigningBonuses      map[string][]SigningBonus
	TerminationBenefits map[string][]TerminationBenefit
	Refunds             map[string][]Refund
	Penalties           map[string][]Penalty
}

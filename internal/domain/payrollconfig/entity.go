package payrollconfig

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the configuration approval state. Only APPROVED rows are
// ever read into a Snapshot.
type ApprovalStatus string

const (
	ApprovalStatusDraft    ApprovalStatus = "DRAFT"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

type TaxRule struct {
	ID   string
	Name string
	Rate decimal.NullDecimal // percent
}

type InsuranceBracket struct {
	ID           string
	Name         string
	MinSalary    decimal.NullDecimal
	MaxSalary    decimal.NullDecimal // null means no upper bound
	EmployeeRate decimal.NullDecimal // percent
	EmployerRate decimal.NullDecimal // percent, recorded only
}

// Contains reports whether gross falls inside [MinSalary, MaxSalary].
func (b InsuranceBracket) Contains(gross decimal.Decimal) bool {
	lower := decimal.Zero
	if b.MinSalary.Valid {
		lower = b.MinSalary.Decimal
	}
	if gross.LessThan(lower) {
		return false
	}
	if b.MaxSalary.Valid && gross.GreaterThan(b.MaxSalary.Decimal) {
		return false
	}
	return true
}

type Allowance struct {
	ID     string
	Name   string
	Amount decimal.NullDecimal
}

// Snapshot is one consistent read of approved configuration, taken once at
// the start of a calculation batch.
type Snapshot struct {
	TaxRules          []TaxRule
	InsuranceBrackets []InsuranceBracket
	Allowances        []Allowance
	MinimumWage       decimal.Decimal
	TakenAt           time.Time
}

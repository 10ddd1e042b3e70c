package employee

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID                string
	FullName          string
	Department        string
	Status            Status
	HireDate          time.Time
	ContractEndDate   *time.Time
	BankName          string
	BankAccountNumber string
	PayGradeID        *string
}

// HasBankAccount reports whether a bank account number is on file.
func (e Employee) HasBankAccount() bool {
	return strings.TrimSpace(e.BankAccountNumber) != ""
}

type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusInactive   Status = "INACTIVE"
	StatusSuspended  Status = "SUSPENDED"
	StatusTerminated Status = "TERMINATED"
)

// PayGrade amounts are nullable in the directory; a null is read as zero
// by the calculation pipeline with a warning.
type PayGrade struct {
	ID          string
	Name        string
	BaseSalary  decimal.NullDecimal
	GrossSalary decimal.NullDecimal
}

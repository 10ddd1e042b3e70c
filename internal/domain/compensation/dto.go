package compensation

import (
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type DecideRequest struct {
	Kind     ItemKind       `json:"-"`
	ItemID   string         `json:"-"`
	ActorID  string         `json:"-"`
	Decision DecisionStatus `json:"decision"`
}

func (r *DecideRequest) Validate() error {
	var errs validator.ValidationErrors

	if !r.Kind.IsValid() {
		errs = errs.Add("kind", "must be 'signing-bonus' or 'termination-benefit'")
	}
	if validator.IsEmpty(r.ItemID) {
		errs = errs.Add("id", "is required")
	}
	r.Decision = DecisionStatus(strings.ToUpper(string(r.Decision)))
	if r.Decision != DecisionApproved && r.Decision != DecisionRejected {
		errs = errs.Add("decision", "must be APPROVED or REJECTED")
	}

	return errs.Err()
}

type EditAmountRequest struct {
	Kind    ItemKind         `json:"-"`
	ItemID  string           `json:"-"`
	ActorID string           `json:"-"`
	Amount  *decimal.Decimal `json:"amount"`
}

func (r *EditAmountRequest) Validate() error {
	var errs validator.ValidationErrors

	if !r.Kind.IsValid() {
		errs = errs.Add("kind", "must be 'signing-bonus' or 'termination-benefit'")
	}
	if validator.IsEmpty(r.ItemID) {
		errs = errs.Add("id", "is required")
	}
	if r.Amount == nil {
		errs = errs.Add("amount", "is required")
	} else if !validator.IsNonNegative(*r.Amount) {
		errs = errs.Add("amount", "must be non-negative")
	}

	return errs.Err()
}

type SigningBonusResponse struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employee_id"`
	Name       string           `json:"name"`
	Amount     *decimal.Decimal `json:"amount"`
	Status     DecisionStatus   `json:"status"`
}

type TerminationBenefitResponse struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employee_id"`
	Name       string           `json:"name"`
	Kind       BenefitKind      `json:"kind"`
	Amount     *decimal.Decimal `json:"amount"`
	Status     DecisionStatus   `json:"status"`
}

type PendingItemsResponse struct {
	SigningBonuses      []SigningBonusResponse       `json:"signing_bonuses"`
	TerminationBenefits []TerminationBenefitResponse `json:"termination_benefits"`
}

type Phase0StatusResponse struct {
	Complete        bool `json:"complete"`
	PendingBonuses  int  `json:"pending_signing_bonuses"`
	PendingBenefits int  `json:"pending_termination_benefits"`
}

func nullableAmount(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func NewSigningBonusResponse(b SigningBonus) SigningBonusResponse {
	return SigningBonusResponse{
		ID:         b.ID,
		EmployeeID: b.EmployeeID,
		Name:       b.Name,
		Amount:     nullableAmount(b.Amount),
		Status:     b.Status,
	}
}

func NewTerminationBenefitResponse(b TerminationBenefit) TerminationBenefitResponse {
	return TerminationBenefitResponse{
		ID:         b.ID,
		EmployeeID: b.EmployeeID,
		Name:       b.Name,
		Kind:       b.Kind,
		Amount:     nullableAmount(b.Amount),
		Status:     b.Status,
	}
}

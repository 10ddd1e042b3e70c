package compensation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type CompensationRepository interface {
	// Phase 0
	CountPending(ctx context.Context) (bonuses int, benefits int, err error)
	ListPendingSigningBonuses(ctx context.Context) ([]SigningBonus, error)
	ListPendingTerminationBenefits(ctx context.Context) ([]TerminationBenefit, error)
	GetSigningBonus(ctx context.Context, id string) (SigningBonus, error)
	GetTerminationBenefit(ctx context.Context, id string) (TerminationBenefit, error)

	// Guarded writes. Each returns false when the row was not in the expected
	// status, so retries never apply the same change twice.
	DecideSigningBonus(ctx context.Context, id string, decision DecisionStatus, actorID string) (bool, error)
	DecideTerminationBenefit(ctx context.Context, id string, decision DecisionStatus, actorID string) (bool, error)
	UpdateSigningBonusAmount(ctx context.Context, id string, amount decimal.Decimal) (bool, error)
	UpdateTerminationBenefitAmount(ctx context.Context, id string, amount decimal.Decimal) (bool, error)
	MarkSigningBonusPaid(ctx context.Context, id string, runID string) (bool, error)
	MarkTerminationBenefitPaid(ctx context.Context, id string, runID string) (bool, error)
	MarkRefundPaid(ctx context.Context, id string, runID string) (bool, error)

	// Calculation inputs
	ListApprovedSigningBonuses(ctx context.Context, employeeIDs []string) ([]SigningBonus, error)
	ListApprovedTerminationBenefits(ctx context.Context, employeeIDs []string) ([]TerminationBenefit, error)
	ListPendingRefunds(ctx context.Context, employeeIDs []string) ([]Refund, error)
	ListPenalties(ctx context.Context, employeeIDs []string, start, end time.Time) ([]Penalty, error)
}

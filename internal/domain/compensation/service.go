package compensation

import "context"

// CompensationService is the Pre-Run Gate: it owns the specialist's
// decisions on signing bonuses and termination/resignation benefits.
type CompensationService interface {
	IsPhase0Complete(ctx context.Context) (bool, error)
	Phase0Status(ctx context.Context) (Phase0StatusResponse, error)
	ListPendingItems(ctx context.Context) (PendingItemsResponse, error)
	Decide(ctx context.Context, req DecideRequest) error
	EditAmount(ctx context.Context, req EditAmountRequest) error
}

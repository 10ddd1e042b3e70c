package compensation

import (
	"context"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type CompensationServiceImpl struct {
	tx               database.Transactor
	compensationRepo compensation.CompensationRepository
	auditService     audit.AuditService
	logger           *slog.Logger
}

func NewCompensationService(
	tx database.Transactor,
	compensationRepo compensation.CompensationRepository,
	auditService audit.AuditService,
	logger *slog.Logger,
) compensation.CompensationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompensationServiceImpl{
		tx:               tx,
		compensationRepo: compensationRepo,
		auditService:     auditService,
		logger:           logger,
	}
}

// ========== GATE ==========

// IsPhase0Complete reports whether no signing bonus and no termination or
// resignation benefit is still waiting for a decision.
func (s *CompensationServiceImpl) IsPhase0Complete(ctx context.Context) (bool, error) {
	status, err := s.Phase0Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Complete, nil
}

func (s *CompensationServiceImpl) Phase0Status(ctx context.Context) (compensation.Phase0StatusResponse, error) {
	bonuses, benefits, err := s.compensationRepo.CountPending(ctx)
	if err != nil {
		return compensation.Phase0StatusResponse{}, err
	}
	return compensation.Phase0StatusResponse{
		Complete:        bonuses == 0 && benefits == 0,
		PendingBonuses:  bonuses,
		PendingBenefits: benefits,
	}, nil
}

func (s *CompensationServiceImpl) ListPendingItems(ctx context.Context) (compensation.PendingItemsResponse, error) {
	bonuses, err := s.compensationRepo.ListPendingSigningBonuses(ctx)
	if err != nil {
		return compensation.PendingItemsResponse{}, err
	}
	benefits, err := s.compensationRepo.ListPendingTerminationBenefits(ctx)
	if err != nil {
		return compensation.PendingItemsResponse{}, err
	}

	resp := compensation.PendingItemsResponse{
		SigningBonuses:      make([]compensation.SigningBonusResponse, 0, len(bonuses)),
		TerminationBenefits: make([]compensation.TerminationBenefitResponse, 0, len(benefits)),
	}
	for _, b := range bonuses {
		resp.SigningBonuses = append(resp.SigningBonuses, compensation.NewSigningBonusResponse(b))
	}
	for _, b := range benefits {
		resp.TerminationBenefits = append(resp.TerminationBenefits, compensation.NewTerminationBenefitResponse(b))
	}
	return resp, nil
}

// ========== DECISIONS ==========

// pendingItem is the part of a bonus or benefit a decision or edit needs.
type pendingItem struct {
	status compensation.DecisionStatus
	amount decimal.NullDecimal
}

func (s *CompensationServiceImpl) loadItem(ctx context.Context, kind compensation.ItemKind, id string) (pendingItem, error) {
	switch kind {
	case compensation.ItemKindSigningBonus:
		b, err := s.compensationRepo.GetSigningBonus(ctx, id)
		if err != nil {
			return pendingItem{}, err
		}
		return pendingItem{status: b.Status, amount: b.Amount}, nil
	case compensation.ItemKindTerminationBenefit:
		b, err := s.compensationRepo.GetTerminationBenefit(ctx, id)
		if err != nil {
			return pendingItem{}, err
		}
		return pendingItem{status: b.Status, amount: b.Amount}, nil
	default:
		return pendingItem{}, compensation.ErrInvalidItemKind
	}
}

func (s *CompensationServiceImpl) Decide(ctx context.Context, req compensation.DecideRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	item, err := s.loadItem(ctx, req.Kind, req.ItemID)
	if err != nil {
		return err
	}
	if item.status != compensation.DecisionPending {
		return compensation.ErrItemNotPending
	}

	entityType, action := "signing_bonus", audit.ActionBonusDecided
	decide := s.compensationRepo.DecideSigningBonus
	if req.Kind == compensation.ItemKindTerminationBenefit {
		entityType, action = "termination_benefit", audit.ActionBenefitDecided
		decide = s.compensationRepo.DecideTerminationBenefit
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := decide(ctx, req.ItemID, req.Decision, req.ActorID)
		if err != nil {
			return err
		}
		if !ok {
			return compensation.ErrItemNotPending
		}
		return s.auditService.Record(ctx, action, entityType, req.ItemID, req.ActorID,
			map[string]any{"status": compensation.DecisionPending},
			map[string]any{"status": req.Decision},
		)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Phase 0 item decided", "kind", req.Kind, "item_id", req.ItemID, "decision", req.Decision, "actor_id", req.ActorID)
	return nil
}

// EditAmount changes the amount of an item that is still PENDING.
func (s *CompensationServiceImpl) EditAmount(ctx context.Context, req compensation.EditAmountRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	item, err := s.loadItem(ctx, req.Kind, req.ItemID)
	if err != nil {
		return err
	}
	if item.status != compensation.DecisionPending {
		return compensation.ErrItemNotPending
	}

	entityType, action := "signing_bonus", audit.ActionBonusAmountEdited
	update := s.compensationRepo.UpdateSigningBonusAmount
	if req.Kind == compensation.ItemKindTerminationBenefit {
		entityType, action = "termination_benefit", audit.ActionBenefitAmountEdited
		update = s.compensationRepo.UpdateTerminationBenefitAmount
	}

	amount := req.Amount.Round(2)
	var before any
	if item.amount.Valid {
		before = map[string]string{"amount": item.amount.Decimal.StringFixed(2)}
	} else {
		before = map[string]any{"amount": nil}
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := update(ctx, req.ItemID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return compensation.ErrItemNotPending
		}
		return s.auditService.Record(ctx, action, entityType, req.ItemID, req.ActorID,
			before,
			map[string]string{"amount": amount.StringFixed(2)},
		)
	})
}

package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type compensationRepository struct {
	db *database.DB
}

func NewCompensationRepository(db *database.DB) compensation.CompensationRepository {
	return &compensationRepository{db: db}
}

const (
	signingBonusColumns       = `id, employee_id, name, amount, status, decided_by, decided_at, paid_in_run_id, updated_at`
	terminationBenefitColumns = `id, employee_id, name, kind, amount, status, decided_by, decided_at, paid_in_run_id, updated_at`
)

func scanSigningBonus(row pgx.Row) (compensation.SigningBonus, error) {
	var b compensation.SigningBonus
	err := row.Scan(&b.ID, &b.EmployeeID, &b.Name, &b.Amount, &b.Status, &b.DecidedBy, &b.DecidedAt, &b.PaidInRunID, &b.UpdatedAt)
	return b, err
}

func scanTerminationBenefit(row pgx.Row) (compensation.TerminationBenefit, error) {
	var b compensation.TerminationBenefit
	err := row.Scan(&b.ID, &b.EmployeeID, &b.Name, &b.Kind, &b.Amount, &b.Status, &b.DecidedBy, &b.DecidedAt, &b.PaidInRunID, &b.UpdatedAt)
	return b, err
}

func (r *compensationRepository) listSigningBonuses(ctx context.Context, where string, args ...interface{}) ([]compensation.SigningBonus, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+signingBonusColumns+` FROM signing_bonuses WHERE `+where+` ORDER BY employee_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signing bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []compensation.SigningBonus
	for rows.Next() {
		b, err := scanSigningBonus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signing bonus: %w", err)
		}
		bonuses = append(bonuses, b)
	}

	return bonuses, rows.Err()
}

func (r *compensationRepository) listTerminationBenefits(ctx context.Context, where string, args ...interface{}) ([]compensation.TerminationBenefit, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+terminationBenefitColumns+` FROM termination_benefits WHERE `+where+` ORDER BY employee_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list termination benefits: %w", err)
	}
	defer rows.Close()

	var benefits []compensation.TerminationBenefit
	for rows.Next() {
		b, err := scanTerminationBenefit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan termination benefit: %w", err)
		}
		benefits = append(benefits, b)
	}

	return benefits, rows.Err()
}

// ========== PHASE 0 ==========

func (r *compensationRepository) CountPending(ctx context.Context) (int, int, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			(SELECT COUNT(*) FROM signing_bonuses WHERE status = $1),
			(SELECT COUNT(*) FROM termination_benefits WHERE status = $1)
	`

	var bonuses, benefits int
	if err := q.QueryRow(ctx, query, compensation.DecisionPending).Scan(&bonuses, &benefits); err != nil {
		return 0, 0, fmt.Errorf("failed to count pending items: %w", err)
	}

	return bonuses, benefits, nil
}

func (r *compensationRepository) ListPendingSigningBonuses(ctx context.Context) ([]compensation.SigningBonus, error) {
	return r.listSigningBonuses(ctx, `status = $1`, compensation.DecisionPending)
}

func (r *compensationRepository) ListPendingTerminationBenefits(ctx context.Context) ([]compensation.TerminationBenefit, error) {
	return r.listTerminationBenefits(ctx, `status = $1`, compensation.DecisionPending)
}

func (r *compensationRepository) GetSigningBonus(ctx context.Context, id string) (compensation.SigningBonus, error) {
	q := GetQuerier(ctx, r.db)

	b, err := scanSigningBonus(q.QueryRow(ctx, `SELECT `+signingBonusColumns+` FROM signing_bonuses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return compensation.SigningBonus{}, compensation.ErrSigningBonusNotFound
		}
		return compensation.SigningBonus{}, fmt.Errorf("failed to get signing bonus: %w", err)
	}

	return b, nil
}

func (r *compensationRepository) GetTerminationBenefit(ctx context.Context, id string) (compensation.TerminationBenefit, error) {
	q := GetQuerier(ctx, r.db)

	b, err := scanTerminationBenefit(q.QueryRow(ctx, `SELECT `+terminationBenefitColumns+` FROM termination_benefits WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return compensation.TerminationBenefit{}, compensation.ErrTerminationBenefitNotFound
		}
		return compensation.TerminationBenefit{}, fmt.Errorf("failed to get termination benefit: %w", err)
	}

	return b, nil
}

// ========== GUARDED WRITES ==========

// guardedExec reports whether query changed a row. The WHERE clause of every
// caller pins the expected status.
func (r *compensationRepository) guardedExec(ctx context.Context, what, query string, args ...interface{}) (bool, error) {
	q := GetQuerier(ctx, r.db)

	commandTag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", what, err)
	}

	return commandTag.RowsAffected() == 1, nil
}

func (r *compensationRepository) DecideSigningBonus(ctx context.Context, id string, decision compensation.DecisionStatus, actorID string) (bool, error) {
	return r.guardedExec(ctx, "decide signing bonus", `
		UPDATE signing_bonuses SET status = $2, decided_by = $3, decided_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, decision, actorID, compensation.DecisionPending)
}

func (r *compensationRepository) DecideTerminationBenefit(ctx context.Context, id string, decision compensation.DecisionStatus, actorID string) (bool, error) {
	return r.guardedExec(ctx, "decide termination benefit", `
		UPDATE termination_benefits SET status = $2, decided_by = $3, decided_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, decision, actorID, compensation.DecisionPending)
}

func (r *compensationRepository) UpdateSigningBonusAmount(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	return r.guardedExec(ctx, "update signing bonus amount", `
		UPDATE signing_bonuses SET amount = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, amount, compensation.DecisionPending)
}

func (r *compensationRepository) UpdateTerminationBenefitAmount(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	return r.guardedExec(ctx, "update termination benefit amount", `
		UPDATE termination_benefits SET amount = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, amount, compensation.DecisionPending)
}

func (r *compensationRepository) MarkSigningBonusPaid(ctx context.Context, id string, runID string) (bool, error) {
	return r.guardedExec(ctx, "mark signing bonus paid", `
		UPDATE signing_bonuses SET status = $2, paid_in_run_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, compensation.DecisionPaid, runID, compensation.DecisionApproved)
}

func (r *compensationRepository) MarkTerminationBenefitPaid(ctx context.Context, id string, runID string) (bool, error) {
	return r.guardedExec(ctx, "mark termination benefit paid", `
		UPDATE termination_benefits SET status = $2, paid_in_run_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, compensation.DecisionPaid, runID, compensation.DecisionApproved)
}

func (r *compensationRepository) MarkRefundPaid(ctx context.Context, id string, runID string) (bool, error) {
	return r.guardedExec(ctx, "mark refund paid", `
		UPDATE refunds SET status = $2, paid_in_run_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, compensation.RefundStatusPaid, runID, compensation.RefundStatusPending)
}

// ========== CALCULATION INPUTS ==========

func (r *compensationRepository) ListApprovedSigningBonuses(ctx context.Context, employeeIDs []string) ([]compensation.SigningBonus, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	return r.listSigningBonuses(ctx, `status = $1 AND employee_id = ANY($2)`, compensation.DecisionApproved, employeeIDs)
}

func (r *compensationRepository) ListApprovedTerminationBenefits(ctx context.Context, employeeIDs []string) ([]compensation.TerminationBenefit, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	return r.listTerminationBenefits(ctx, `status = $1 AND employee_id = ANY($2)`, compensation.DecisionApproved, employeeIDs)
}

func (r *compensationRepository) ListPendingRefunds(ctx context.Context, employeeIDs []string) ([]compensation.Refund, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, employee_id, description, amount, status, paid_in_run_id
		FROM refunds
		WHERE status = $1 AND employee_id = ANY($2)
		ORDER BY employee_id, id
	`, compensation.RefundStatusPending, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []compensation.Refund
	for rows.Next() {
		var rf compensation.Refund
		if err := rows.Scan(&rf.ID, &rf.EmployeeID, &rf.Description, &rf.Amount, &rf.Status, &rf.PaidInRunID); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, rf)
	}

	return refunds, rows.Err()
}

func (r *compensationRepository) ListPenalties(ctx context.Context, employeeIDs []string, start, end time.Time) ([]compensation.Penalty, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, employee_id, reason, amount, date
		FROM penalties
		WHERE employee_id = ANY($1) AND date BETWEEN $2 AND $3
		ORDER BY employee_id, date, id
	`, employeeIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties: %w", err)
	}
	defer rows.Close()

	var penalties []compensation.Penalty
	for rows.Next() {
		var p compensation.Penalty
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.Reason, &p.Amount, &p.Date); err != nil {
			return nil, fmt.Errorf("failed to scan penalty: %w", err)
		}
		penalties = append(penalties, p)
	}

	return penalties, rows.Err()
}

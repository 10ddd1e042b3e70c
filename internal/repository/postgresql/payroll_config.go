package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payrollconfig"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollConfigRepository struct {
	db *database.DB
}

func NewPayrollConfigRepository(db *database.DB) payrollconfig.PayrollConfigRepository {
	return &payrollConfigRepository{db: db}
}

// LoadApproved reads the three configuration lists in one REPEATABLE READ
// snapshot, so a batch never mixes old and new rules.
func (r *payrollConfigRepository) LoadApproved(ctx context.Context) (payrollconfig.Snapshot, error) {
	var snapshot payrollconfig.Snapshot

	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := WithTransaction(ctx, r.db, opts, func(tx pgx.Tx) error {
		var err error
		if snapshot.TaxRules, err = listApprovedTaxRules(ctx, tx); err != nil {
			return err
		}
		if snapshot.InsuranceBrackets, err = listApprovedInsuranceBrackets(ctx, tx); err != nil {
			return err
		}
		snapshot.Allowances, err = listApprovedAllowances(ctx, tx)
		return err
	})
	if err != nil {
		return payrollconfig.Snapshot{}, err
	}

	snapshot.TakenAt = time.Now().UTC()
	return snapshot, nil
}

func listApprovedTaxRules(ctx context.Context, q database.Querier) ([]payrollconfig.TaxRule, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, rate FROM tax_rules
		WHERE approval_status = $1
		ORDER BY name, id
	`, payrollconfig.ApprovalStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax rules: %w", err)
	}
	defer rows.Close()

	var rules []payrollconfig.TaxRule
	for rows.Next() {
		var t payrollconfig.TaxRule
		if err := rows.Scan(&t.ID, &t.Name, &t.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan tax rule: %w", err)
		}
		rules = append(rules, t)
	}

	return rules, rows.Err()
}

func listApprovedInsuranceBrackets(ctx context.Context, q database.Querier) ([]payrollconfig.InsuranceBracket, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, min_salary, max_salary, employee_rate, employer_rate FROM insurance_brackets
		WHERE approval_status = $1
		ORDER BY min_salary NULLS FIRST, id
	`, payrollconfig.ApprovalStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list insurance brackets: %w", err)
	}
	defer rows.Close()

	var brackets []payrollconfig.InsuranceBracket
	for rows.Next() {
		var b payrollconfig.InsuranceBracket
		if err := rows.Scan(&b.ID, &b.Name, &b.MinSalary, &b.MaxSalary, &b.EmployeeRate, &b.EmployerRate); err != nil {
			return nil, fmt.Errorf("failed to scan insurance bracket: %w", err)
		}
		brackets = append(brackets, b)
	}

	return brackets, rows.Err()
}

func listApprovedAllowances(ctx context.Context, q database.Querier) ([]payrollconfig.Allowance, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, amount FROM allowances
		WHERE approval_status = $1
		ORDER BY name, id
	`, payrollconfig.ApprovalStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowances: %w", err)
	}
	defer rows.Close()

	var allowances []payrollconfig.Allowance
	for rows.Next() {
		var a payrollconfig.Allowance
		if err := rows.Scan(&a.ID, &a.Name, &a.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan allowance: %w", err)
		}
		allowances = append(allowances, a)
	}

	return allowances, rows.Err()
}

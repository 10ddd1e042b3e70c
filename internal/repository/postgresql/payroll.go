package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// ========== RUNS ==========

type runRepository struct {
	db *database.DB
}

func NewRunRepository(db *database.DB) payroll.RunRepository {
	return &runRepository{db: db}
}

const runColumns = `
	id, period, entity, status, payment_status, employee_count, exception_count, total_net_pay,
	specialist_id, manager_id, finance_staff_id, rejection_reason, rejected_by, unlock_reason, unlocked_by,
	created_at, updated_at`

func scanRun(row pgx.Row) (payroll.Run, error) {
	var r payroll.Run
	err := row.Scan(
		&r.ID, &r.Period, &r.Entity, &r.Status, &r.PaymentStatus, &r.EmployeeCount, &r.ExceptionCount, &r.TotalNetPay,
		&r.SpecialistID, &r.ManagerID, &r.FinanceStaffID, &r.RejectionReason, &r.RejectedBy, &r.UnlockReason, &r.UnlockedBy,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (r *runRepository) UpsertForPeriod(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (
			id, period, entity, status, payment_status, employee_count, exception_count, total_net_pay,
			specialist_id, manager_id
		) VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7, $8)
		ON CONFLICT (period, entity) DO UPDATE SET
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			specialist_id = EXCLUDED.specialist_id,
			manager_id = EXCLUDED.manager_id,
			finance_staff_id = NULL,
			rejection_reason = NULL,
			rejected_by = NULL,
			unlock_reason = NULL,
			unlocked_by = NULL,
			updated_at = NOW()
		RETURNING ` + runColumns

	saved, err := scanRun(q.QueryRow(ctx, query,
		run.ID, run.Period, run.Entity, run.Status, run.PaymentStatus, run.TotalNetPay,
		run.SpecialistID, run.ManagerID,
	))
	if err != nil {
		return payroll.Run{}, fmt.Errorf("failed to upsert payroll run: %w", err)
	}

	return saved, nil
}

func (r *runRepository) GetByID(ctx context.Context, id string) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1`

	run, err := scanRun(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	return run, nil
}

func (r *runRepository) GetCurrent(ctx context.Context, entity *string) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs`
	args := []interface{}{}
	if entity != nil && *entity != "" {
		query += ` WHERE entity = $1`
		args = append(args, *entity)
	}
	query += ` ORDER BY period DESC, created_at DESC LIMIT 1`

	run, err := scanRun(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, fmt.Errorf("failed to get current payroll run: %w", err)
	}

	return run, nil
}

func (r *runRepository) List(ctx context.Context, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := ` FROM payroll_runs WHERE 1 = 1`
	args := []interface{}{}
	argIdx := 1

	if filter.Entity != nil {
		baseQuery += fmt.Sprintf(" AND entity = $%d", argIdx)
		args = append(args, *filter.Entity)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	filter.Normalize()
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY period DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		runColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}

	return runs, totalCount, nil
}

func (r *runRepository) ListByStatuses(ctx context.Context, statuses []payroll.RunStatus) ([]payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE status = ANY($1) ORDER BY period DESC`

	rows, err := q.Query(ctx, query, values)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs by status: %w", err)
	}
	defer rows.Close()

	var runs []payroll.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CompareAndSwap writes every mutable column of next while the stored status
// still equals expected.
func (r *runRepository) CompareAndSwap(ctx context.Context, expected payroll.RunStatus, next payroll.Run) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs SET
			status = $3,
			payment_status = $4,
			employee_count = $5,
			exception_count = $6,
			total_net_pay = $7,
			specialist_id = $8,
			manager_id = $9,
			finance_staff_id = $10,
			rejection_reason = $11,
			rejected_by = $12,
			unlock_reason = $13,
			unlocked_by = $14,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + runColumns

	saved, err := scanRun(q.QueryRow(ctx, query,
		next.ID, expected,
		next.Status, next.PaymentStatus, next.EmployeeCount, next.ExceptionCount, next.TotalNetPay,
		next.SpecialistID, next.ManagerID, next.FinanceStaffID,
		next.RejectionReason, next.RejectedBy, next.UnlockReason, next.UnlockedBy,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.Run{}, fmt.Errorf("failed to update payroll run: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_runs WHERE id = $1)`, next.ID).Scan(&exists); err != nil {
		return payroll.Run{}, fmt.Errorf("failed to check payroll run: %w", err)
	}
	if !exists {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	return payroll.Run{}, payroll.ErrConcurrentModification
}

// ========== PAYSLIPS ==========

type payslipRepository struct {
	db *database.DB
}

func NewPayslipRepository(db *database.DB) payroll.PayslipRepository {
	return &payslipRepository{db: db}
}

const payslipColumns = `
	p.id, p.run_id, p.employee_id, p.employee_name, p.department, p.bank_name, p.bank_account_number,
	p.proration_factor, p.earnings_details, p.deductions_details,
	p.total_gross_salary, p.total_deductions, p.net_pay, p.payment_status, p.created_at, p.updated_at`

func scanPayslip(row pgx.Row) (payroll.Payslip, error) {
	var (
		p                           payroll.Payslip
		earningsJSON, deductionJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.RunID, &p.EmployeeID, &p.EmployeeName, &p.Department, &p.BankName, &p.BankAccountNumber,
		&p.ProrationFactor, &earningsJSON, &deductionJSON,
		&p.TotalGrossSalary, &p.TotalDeductions, &p.NetPay, &p.PaymentStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return payroll.Payslip{}, err
	}
	if err := json.Unmarshal(earningsJSON, &p.Earnings); err != nil {
		return payroll.Payslip{}, fmt.Errorf("failed to decode earnings of payslip %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(deductionJSON, &p.Deductions); err != nil {
		return payroll.Payslip{}, fmt.Errorf("failed to decode deductions of payslip %s: %w", p.ID, err)
	}
	return p, nil
}

func encodeDetails(p payroll.Payslip) ([]byte, []byte, error) {
	earnings, err := json.Marshal(p.Earnings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode earnings: %w", err)
	}
	deductions, err := json.Marshal(p.Deductions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode deductions: %w", err)
	}
	return earnings, deductions, nil
}

// ReplaceForRun must run inside the caller's transaction; the delete and
// the inserts are not atomic otherwise.
func (r *payslipRepository) ReplaceForRun(ctx context.Context, runID string, payslips []payroll.Payslip) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM payslips WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete payslips: %w", err)
	}
	if len(payslips) == 0 {
		return nil
	}

	query := `
		INSERT INTO payslips (
			id, run_id, employee_id, employee_name, department, bank_name, bank_account_number,
			proration_factor, earnings_details, deductions_details,
			total_gross_salary, total_deductions, net_pay, payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	batch := &pgx.Batch{}
	for _, p := range payslips {
		earnings, deductions, err := encodeDetails(p)
		if err != nil {
			return err
		}
		batch.Queue(query,
			p.ID, runID, p.EmployeeID, p.EmployeeName, p.Department, p.BankName, p.BankAccountNumber,
			p.ProrationFactor, earnings, deductions,
			p.TotalGrossSalary, p.TotalDeductions, p.NetPay, p.PaymentStatus, p.CreatedAt, p.UpdatedAt,
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for range payslips {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert payslip: %w", err)
		}
	}

	return nil
}

func (r *payslipRepository) ListByRun(ctx context.Context, runID string) ([]payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payslipColumns + ` FROM payslips p WHERE p.run_id = $1 ORDER BY p.employee_name, p.employee_id`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payslips: %w", err)
	}
	defer rows.Close()

	var payslips []payroll.Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payslip: %w", err)
		}
		payslips = append(payslips, p)
	}

	return payslips, rows.Err()
}

func (r *payslipRepository) GetByID(ctx context.Context, id string) (payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payslipColumns + ` FROM payslips p WHERE p.id = $1`

	p, err := scanPayslip(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Payslip{}, payroll.ErrPayslipNotFound
		}
		return payroll.Payslip{}, fmt.Errorf("failed to get payslip: %w", err)
	}

	return p, nil
}

func (r *payslipRepository) Update(ctx context.Context, p payroll.Payslip) error {
	q := GetQuerier(ctx, r.db)

	earnings, deductions, err := encodeDetails(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE payslips SET
			earnings_details = $2,
			deductions_details = $3,
			total_gross_salary = $4,
			total_deductions = $5,
			net_pay = $6,
			updated_at = $7
		WHERE id = $1
	`

	commandTag, err := q.Exec(ctx, query, p.ID, earnings, deductions, p.TotalGrossSalary, p.TotalDeductions, p.NetPay, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update payslip: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return payroll.ErrPayslipNotFound
	}

	return nil
}

func (r *payslipRepository) MarkPaidByRun(ctx context.Context, runID string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	commandTag, err := q.Exec(ctx, `
		UPDATE payslips SET payment_status = $2, updated_at = NOW()
		WHERE run_id = $1 AND payment_status <> $2
	`, runID, payroll.PaymentStatusPaid)
	if err != nil {
		return 0, fmt.Errorf("failed to mark payslips paid: %w", err)
	}

	return commandTag.RowsAffected(), nil
}

func (r *payslipRepository) LatestForEmployee(ctx context.Context, employeeID string, excludeRunID string) (payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + payslipColumns + `
		FROM payslips p
		WHERE p.employee_id = $1 AND p.run_id <> $2
		ORDER BY p.created_at DESC
		LIMIT 1
	`

	p, err := scanPayslip(q.QueryRow(ctx, query, employeeID, excludeRunID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Payslip{}, payroll.ErrPayslipNotFound
		}
		return payroll.Payslip{}, fmt.Errorf("failed to get latest payslip: %w", err)
	}

	return p, nil
}

// ========== ANOMALY RESOLUTIONS ==========

type anomalyResolutionRepository struct {
	db *database.DB
}

func NewAnomalyResolutionRepository(db *database.DB) payroll.AnomalyResolutionRepository {
	return &anomalyResolutionRepository{db: db}
}

func (r *anomalyResolutionRepository) Upsert(ctx context.Context, res payroll.AnomalyResolution) (payroll.AnomalyResolution, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO anomaly_resolutions (payslip_id, resolved_at, resolved_by, notes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (payslip_id) DO UPDATE SET
			resolved_at = EXCLUDED.resolved_at,
			resolved_by = EXCLUDED.resolved_by,
			notes = EXCLUDED.notes
		RETURNING payslip_id, resolved_at, resolved_by, notes
	`

	var saved payroll.AnomalyResolution
	err := q.QueryRow(ctx, query, res.PayslipID, res.ResolvedAt, res.ResolvedBy, res.Notes).Scan(
		&saved.PayslipID, &saved.ResolvedAt, &saved.ResolvedBy, &saved.Notes,
	)
	if err != nil {
		return payroll.AnomalyResolution{}, fmt.Errorf("failed to save anomaly resolution: %w", err)
	}

	return saved, nil
}

func (r *anomalyResolutionRepository) Delete(ctx context.Context, payslipID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM anomaly_resolutions WHERE payslip_id = $1`, payslipID); err != nil {
		return fmt.Errorf("failed to delete anomaly resolution: %w", err)
	}
	return nil
}

func (r *anomalyResolutionRepository) ListByPayslipIDs(ctx context.Context, payslipIDs []string) (map[string]payroll.AnomalyResolution, error) {
	result := make(map[string]payroll.AnomalyResolution, len(payslipIDs))
	if len(payslipIDs) == 0 {
		return result, nil
	}

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT payslip_id, resolved_at, resolved_by, notes
		FROM anomaly_resolutions
		WHERE payslip_id = ANY($1)
	`, payslipIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomaly resolutions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res payroll.AnomalyResolution
		if err := rows.Scan(&res.PayslipID, &res.ResolvedAt, &res.ResolvedBy, &res.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly resolution: %w", err)
		}
		result[res.PayslipID] = res
	}

	return result, rows.Err()
}

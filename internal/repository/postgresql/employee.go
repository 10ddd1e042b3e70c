package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `
	e.id, e.full_name, COALESCE(d.name, ''), e.employment_status, e.hire_date, e.contract_end_date,
	COALESCE(e.bank_name, ''), COALESCE(e.bank_account_number, ''), e.pay_grade_id`

func scanEmployees(rows pgx.Rows) ([]employee.Employee, error) {
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		var emp employee.Employee
		if err := rows.Scan(
			&emp.ID, &emp.FullName, &emp.Department, &emp.Status, &emp.HireDate, &emp.ContractEndDate,
			&emp.BankName, &emp.BankAccountNumber, &emp.PayGradeID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}

	return employees, rows.Err()
}

// ListActive implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListActive(ctx context.Context, department *string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT ` + employeeColumns + `
		FROM employees e
		LEFT JOIN departments d ON e.department_id = d.id
		WHERE e.employment_status = $1
	`
	args := []interface{}{employee.StatusActive}
	if department != nil {
		query += ` AND d.name = $2`
		args = append(args, *department)
	}
	query += ` ORDER BY e.full_name, e.id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}

	return scanEmployees(rows)
}

// GetByIDs implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByIDs(ctx context.Context, ids []string) (map[string]employee.Employee, error) {
	result := make(map[string]employee.Employee, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	q := GetQuerier(ctx, e.db)

	rows, err := q.Query(ctx, `
		SELECT `+employeeColumns+`
		FROM employees e
		LEFT JOIN departments d ON e.department_id = d.id
		WHERE e.id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get employees: %w", err)
	}

	employees, err := scanEmployees(rows)
	if err != nil {
		return nil, err
	}
	for _, emp := range employees {
		result[emp.ID] = emp
	}

	return result, nil
}

// ListPayGrades implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListPayGrades(ctx context.Context) (map[string]employee.PayGrade, error) {
	q := GetQuerier(ctx, e.db)

	rows, err := q.Query(ctx, `SELECT id, name, base_salary, gross_salary FROM pay_grades`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pay grades: %w", err)
	}
	defer rows.Close()

	grades := make(map[string]employee.PayGrade)
	for rows.Next() {
		var g employee.PayGrade
		if err := rows.Scan(&g.ID, &g.Name, &g.BaseSalary, &g.GrossSalary); err != nil {
			return nil, fmt.Errorf("failed to scan pay grade: %w", err)
		}
		grades[g.ID] = g
	}

	return grades, rows.Err()
}

// DepartmentExists implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) DepartmentExists(ctx context.Context, name string) (bool, error) {
	q := GetQuerier(ctx, e.db)

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM departments WHERE name = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check department: %w", err)
	}

	return exists, nil
}

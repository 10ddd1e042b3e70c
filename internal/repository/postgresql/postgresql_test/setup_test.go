package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/stretchr/testify/require"
)

const migrationPath = "../../../../migrations/0001_payroll_engine.sql"

// TestDatabaseSetup holds a connection to the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL, applies the schema and
// empties every table. Tests are skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 4})
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(db.Close)

	schema, err := os.ReadFile(migrationPath)
	require.NoError(t, err)
	_, err = db.Exec(ctx, string(schema))
	require.NoError(t, err, "failed to apply schema")

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.TruncateAllTables(ctx))
	return setup
}

// TruncateAllTables removes all rows, children first.
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tables := []string{
		"audit_entries",
		"anomaly_resolutions",
		"payslips",
		"payroll_runs",
		"leave_requests",
		"leave_types",
		"penalties",
		"refunds",
		"termination_benefits",
		"signing_bonuses",
		"allowances",
		"insurance_brackets",
		"tax_rules",
		"employees",
		"pay_grades",
		"departments",
	}

	for _, table := range tables {
		if _, err := s.DB.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// seedEmployee inserts an active employee in department and returns its id.
func (s *TestDatabaseSetup) seedEmployee(t *testing.T, name, department string) string {
	t.Helper()
	ctx := context.Background()

	var departmentID string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO departments (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, department).Scan(&departmentID)
	require.NoError(t, err)

	var gradeID string
	err = s.DB.QueryRow(ctx, `
		INSERT INTO pay_grades (name, base_salary, gross_salary) VALUES ('Grade A', 3000, 3000) RETURNING id
	`).Scan(&gradeID)
	require.NoError(t, err)

	var id string
	err = s.DB.QueryRow(ctx, `
		INSERT INTO employees (full_name, department_id, employment_status, hire_date, bank_name, bank_account_number, pay_grade_id)
		VALUES ($1, $2, 'ACTIVE', '2023-01-01', 'NBE', 'EG-001', $3)
		RETURNING id
	`, name, departmentID, gradeID).Scan(&id)
	require.NoError(t, err)
	return id
}

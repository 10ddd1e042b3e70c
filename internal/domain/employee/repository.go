package employee

import "context"

// EmployeeRepository is a read-only view over the employee directory.
type EmployeeRepository interface {
	// ListActive returns ACTIVE employees, restricted to department when it is non-nil.
	ListActive(ctx context.Context, department *string) ([]Employee, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]Employee, error)
	ListPayGrades(ctx context.Context) (map[string]PayGrade, error)
	DepartmentExists(ctx context.Context, name string) (bool, error)
}

package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type leaveRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) leave.LeaveRepository {
	return &leaveRepositoryImpl{db: db}
}

// ListApprovedUnpaid implements leave.LeaveRepository.
func (r *leaveRepositoryImpl) ListApprovedUnpaid(ctx context.Context, employeeIDs []string, start, end time.Time) ([]leave.LeaveRequest, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		SELECT lr.id, lr.employee_id, lr.leave_type_id, lt.name, lt.is_paid, lr.start_date, lr.end_date, lr.status
		FROM leave_requests lr
		JOIN leave_types lt ON lr.leave_type_id = lt.id
		WHERE lr.employee_id = ANY($1)
			AND lr.status = $2
			AND lt.is_paid = false
			AND lr.start_date <= $4
			AND lr.end_date >= $3
		ORDER BY lr.employee_id, lr.start_date, lr.id
	`

	rows, err := q.Query(ctx, query, employeeIDs, leave.LeaveStatusApproved, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid leave requests: %w", err)
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		var lr leave.LeaveRequest
		if err := rows.Scan(
			&lr.ID, &lr.EmployeeID, &lr.LeaveTypeID, &lr.LeaveTypeName, &lr.IsPaid, &lr.StartDate, &lr.EndDate, &lr.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		requests = append(requests, lr)
	}

	return requests, rows.Err()
}

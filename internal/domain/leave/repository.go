package leave

import (
	"context"
	"time"
)

type LeaveRepository interface {
	// ListApprovedUnpaid returns APPROVED requests of unpaid leave types for
	// the given employees whose range overlaps [start, end].
	ListApprovedUnpaid(ctx context.Context, employeeIDs []string, start, end time.Time) ([]LeaveRequest, error)
}

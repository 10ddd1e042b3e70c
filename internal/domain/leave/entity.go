package leave

import "time"

type LeaveStatus string

const (
	LeaveStatusPending   LeaveStatus = "PENDING"
	LeaveStatusApproved  LeaveStatus = "APPROVED"
	LeaveStatusRejected  LeaveStatus = "REJECTED"
	LeaveStatusCancelled LeaveStatus = "CANCELLED"
)

// LeaveRequest is the slice of a leave request that payroll consumes: its
// date range, approval state and whether its leave type is paid.
type LeaveRequest struct {
	ID            string
	EmployeeID    string
	LeaveTypeID   string
	LeaveTypeName string
	IsPaid        bool
	StartDate     time.Time
	EndDate       time.Time
	Status        LeaveStatus
}

// IsUnpaidApproved reports whether the request should be deducted from pay.
func (r LeaveRequest) IsUnpaidApproved() bool {
	return r.Status == LeaveStatusApproved && !r.IsPaid
}

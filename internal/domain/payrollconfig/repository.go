package payrollconfig

import "context"

type PayrollConfigRepository interface {
	// LoadApproved reads approved tax rules, insurance brackets and
	// allowances in a single consistent read.
	LoadApproved(ctx context.Context) (Snapshot, error)
}

package payroll

import "errors"

var (
	ErrRunNotFound            = errors.New("payroll run not found")
	ErrPayslipNotFound        = errors.New("payslip not found")
	ErrInvalidTransition      = errors.New("invalid payroll run state transition")
	ErrConcurrentModification = errors.New("payroll run was modified concurrently")
	ErrPhase0Incomplete       = errors.New("pending signing bonuses or termination benefits must be decided before a run can be initiated")
	ErrCalculationInProgress  = errors.New("payroll run is being recalculated, try again later")
)

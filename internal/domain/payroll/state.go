package payroll

import (
	"fmt"
	"time"
)

// Action is an operation that is only legal in certain run states.
type Action string

const (
	ActionCalculate      Action = "calculate"
	ActionSubmit         Action = "submit"
	ActionManagerApprove Action = "manager_approve"
	ActionManagerReject  Action = "manager_reject"
	ActionFinanceApprove Action = "finance_approve"
	ActionFinanceReject  Action = "finance_reject"
	ActionExecute        Action = "execute"
	ActionUnfreeze       Action = "unfreeze"
	ActionEditPayslip    Action = "edit_payslip"
)

type transition struct {
	from []RunStatus
	to   RunStatus
}

// An empty `to` leaves the status as it is.
var transitions = map[Action]transition{
	ActionCalculate:      {from: []RunStatus{RunStatusDraft, RunStatusRejected}, to: RunStatusDraft},
	ActionSubmit:         {from: []RunStatus{RunStatusDraft}, to: RunStatusUnderReview},
	ActionManagerApprove: {from: []RunStatus{RunStatusUnderReview}, to: RunStatusPendingFinanceApproval},
	ActionManagerReject:  {from: []RunStatus{RunStatusUnderReview}, to: RunStatusRejected},
	ActionFinanceApprove: {from: []RunStatus{RunStatusPendingFinanceApproval}, to: RunStatusApproved},
	ActionFinanceReject:  {from: []RunStatus{RunStatusPendingFinanceApproval}, to: RunStatusRejected},
	ActionExecute:        {from: []RunStatus{RunStatusApproved}, to: RunStatusLocked},
	ActionUnfreeze:       {from: []RunStatus{RunStatusLocked}, to: RunStatusApproved},
	ActionEditPayslip:    {from: []RunStatus{RunStatusDraft, RunStatusRejected}},
}

// NextStatus returns the status a run in `from` moves to under action, or an
// ErrInvalidTransition when the action is not allowed from that status.
func NextStatus(from RunStatus, action Action) (RunStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return from, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	for _, s := range t.from {
		if s == from {
			if t.to == "" {
				return from, nil
			}
			return t.to, nil
		}
	}
	return from, fmt.Errorf("%w: cannot %s a run in %s", ErrInvalidTransition, action, from)
}

// Actions lists every state-gated action.
func Actions() []Action {
	return []Action{
		ActionCalculate, ActionSubmit,
		ActionManagerApprove, ActionManagerReject,
		ActionFinanceApprove, ActionFinanceReject,
		ActionExecute, ActionUnfreeze, ActionEditPayslip,
	}
}

// Statuses lists every run status.
func Statuses() []RunStatus {
	return []RunStatus{
		RunStatusDraft, RunStatusUnderReview, RunStatusPendingFinanceApproval,
		RunStatusApproved, RunStatusLocked, RunStatusRejected,
	}
}

// PeriodBounds returns the first and last calendar day of the month that
// contains period, and the inclusive day count between them.
func PeriodBounds(period time.Time) (start, end time.Time, days int) {
	start = time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, -1)
	days = end.Day()
	return start, end, days
}

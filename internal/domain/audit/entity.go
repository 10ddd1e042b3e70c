package audit

import (
	"encoding/json"
	"time"
)

type Action string

const (
	ActionBonusAmountEdited   Action = "BONUS_AMOUNT_EDITED"
	ActionBenefitAmountEdited Action = "BENEFIT_AMOUNT_EDITED"
	ActionBonusDecided        Action = "BONUS_DECIDED"
	ActionBenefitDecided      Action = "BENEFIT_DECIDED"
	ActionPayslipEdited       Action = "PAYSLIP_EDITED"
	ActionRunUnfrozen         Action = "RUN_UNFROZEN"
)

// Entry is an append-only record of a manual change.
type Entry struct {
	ID         string
	Timestamp  time.Time
	Action     Action
	EntityType string
	EntityID   string
	UserID     string
	Before     json.RawMessage
	After      json.RawMessage
}

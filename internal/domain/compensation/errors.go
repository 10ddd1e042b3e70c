package compensation

import "errors"

var (
	ErrSigningBonusNotFound       = errors.New("signing bonus not found")
	ErrTerminationBenefitNotFound = errors.New("termination benefit not found")
	ErrItemNotPending             = errors.New("item is no longer pending a decision")
	ErrInvalidItemKind            = errors.New("invalid item kind")
)

package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// Error codes clients can branch on.
const (
	CodeBadRequest            = "BAD_REQUEST"
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeRunNotFound           = "RUN_NOT_FOUND"
	CodePayslipNotFound       = "PAYSLIP_NOT_FOUND"
	CodeInvalidTransition     = "INVALID_RUN_TRANSITION"
	CodeRunModified           = "RUN_MODIFIED"
	CodeCalculationInProgress = "CALCULATION_IN_PROGRESS"
	CodePhase0Incomplete      = "PHASE0_INCOMPLETE"
	CodeSourceNotFound        = "SOURCE_NOT_FOUND"
	CodeItemNotPending        = "ITEM_NOT_PENDING"
	CodeInvalidItemKind       = "INVALID_ITEM_KIND"
	CodeInvalidFilePath       = "INVALID_FILE_PATH"
	CodeInternal              = "INTERNAL_ERROR"
	CodeEncoding              = "ENCODING_ERROR"
)

// errorMapping binds a domain error to its response. An empty message
// passes the error text through.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{user.ErrInvalidToken, http.StatusUnauthorized, CodeUnauthorized, ""},
	{user.ErrInsufficientPermissions, http.StatusForbidden, CodeForbidden, ""},

	{payroll.ErrRunNotFound, http.StatusNotFound, CodeRunNotFound, "Payroll run not found"},
	{payroll.ErrPayslipNotFound, http.StatusNotFound, CodePayslipNotFound, "Payslip not found"},
	{payroll.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition, ""},
	{payroll.ErrConcurrentModification, http.StatusConflict, CodeRunModified, "Payroll run was modified by another request, reload and retry"},
	{payroll.ErrCalculationInProgress, http.StatusConflict, CodeCalculationInProgress, ""},
	{payroll.ErrPhase0Incomplete, http.StatusBadRequest, CodePhase0Incomplete, ""},

	{compensation.ErrSigningBonusNotFound, http.StatusNotFound, CodeSourceNotFound, "Signing bonus not found"},
	{compensation.ErrTerminationBenefitNotFound, http.StatusNotFound, CodeSourceNotFound, "Termination benefit not found"},
	{compensation.ErrItemNotPending, http.StatusConflict, CodeItemNotPending, ""},
	{compensation.ErrInvalidItemKind, http.StatusBadRequest, CodeInvalidItemKind, ""},

	{storage.ErrInvalidPath, http.StatusBadRequest, CodeInvalidFilePath, ""},
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.message
		if message == "" {
			message = err.Error()
		}
		Fail(w, m.status, m.code, message, nil)
		return
	}

	Fail(w, http.StatusInternalServerError, CodeInternal, "Payroll engine hit an unexpected error", nil)
}

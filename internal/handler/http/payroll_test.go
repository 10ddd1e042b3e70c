package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/export"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type stubPayrollService struct {
	payroll.PayrollService

	initiateReq   payroll.InitiateRunRequest
	transitionReq payroll.TransitionRequest
	editReq       payroll.EditPayslipRequest
	filter        payroll.RunFilter
	err           error
}

func (s *stubPayrollService) Initiate(_ context.Context, req payroll.InitiateRunRequest) (payroll.RunResponse, error) {
	s.initiateReq = req
	if s.err != nil {
		return payroll.RunResponse{}, s.err
	}
	if err := req.Validate(); err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.RunResponse{ID: "run-1", Entity: req.Entity, Status: payroll.RunStatusDraft}, nil
}

func (s *stubPayrollService) ManagerReject(_ context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	s.transitionReq = req
	if s.err != nil {
		return payroll.RunResponse{}, s.err
	}
	return payroll.RunResponse{ID: req.RunID, Status: payroll.RunStatusRejected}, nil
}

func (s *stubPayrollService) Calculate(_ context.Context, req payroll.TransitionRequest) (payroll.RunResponse, error) {
	s.transitionReq = req
	if s.err != nil {
		return payroll.RunResponse{}, s.err
	}
	return payroll.RunResponse{ID: req.RunID, Status: payroll.RunStatusDraft}, nil
}

func (s *stubPayrollService) RunHistory(_ context.Context, filter payroll.RunFilter) (payroll.ListRunResponse, error) {
	filter.Normalize()
	s.filter = filter
	return payroll.ListRunResponse{
		Data:       []payroll.RunResponse{{ID: "run-1"}},
		TotalCount: 41,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *stubPayrollService) EditPayslip(_ context.Context, req payroll.EditPayslipRequest) (payroll.PayslipResponse, error) {
	s.editReq = req
	if s.err != nil {
		return payroll.PayslipResponse{}, s.err
	}
	return payroll.PayslipResponse{ID: req.PayslipID}, nil
}

func (s *stubPayrollService) BankTransfer(_ context.Context, runID string) (export.BankTransferDocument, error) {
	if s.err != nil {
		return export.BankTransferDocument{}, s.err
	}
	period := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	return export.NewBankTransferDocument("Acme Holdings", "Acme Corp", "EGP", period, period, []export.BankTransferLine{
		{EmployeeName: "Ahmed Ali", BankAccountNumber: "EG-001", BankName: "NBE", NetPay: decimal.NewFromInt(3700)},
	}), nil
}

func (s *stubPayrollService) TaxReport(_ context.Context, runID string) (payroll.TaxReportResponse, error) {
	rate := decimal.RequireFromString("0.1")
	return payroll.TaxReportResponse{
		RunID:  runID,
		Period: "2024-04-01",
		Rows: []payroll.TaxReportRow{{
			EmployeeID:   "emp-1",
			EmployeeName: "Ahmed Ali",
			BaseSalary:   decimal.NewFromInt(3000),
			Taxes:        []payroll.TaxLine{{Name: "Income Tax", Rate: &rate, Amount: decimal.NewFromInt(410)}},
			TotalTax:     decimal.NewFromInt(410),
		}},
		TotalTax: decimal.NewFromInt(410),
	}, nil
}

type stubCompensationService struct {
	compensation.CompensationService

	decideReq compensation.DecideRequest
}

func (s *stubCompensationService) Decide(_ context.Context, req compensation.DecideRequest) error {
	err := req.Validate()
	s.decideReq = req
	return err
}

type stubAuditService struct {
	audit.AuditService

	filter audit.AuditFilter
}

func (s *stubAuditService) List(_ context.Context, filter audit.AuditFilter) ([]audit.EntryResponse, error) {
	s.filter = filter
	return []audit.EntryResponse{}, nil
}

type routerFixture struct {
	jwt          jwt.Service
	payroll      *stubPayrollService
	compensation *stubCompensationService
	audit        *stubAuditService
	hub          *sse.Hub
	handler      http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	f := &routerFixture{
		jwt:          jwt.NewJWTService(handlerTestSecret, "1h"),
		payroll:      &stubPayrollService{},
		compensation: &stubCompensationService{},
		audit:        &stubAuditService{},
		hub:          sse.NewHub(),
	}
	f.handler = NewRouter(
		RouterOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))},
		f.jwt,
		NewPayrollHandler(f.payroll),
		NewCompensationHandler(f.compensation),
		NewAuditHandler(f.audit),
		NewRunEventsHandler(f.hub),
	)
	return f
}

func (f *routerFixture) do(t *testing.T, role user.Role, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, _, err := f.jwt.GenerateAccessToken("user-1", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		TotalItems int64 `json:"total_items"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRouter_RequiresAccessToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, "", http.MethodGet, "/api/v1/runs", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RejectsForeignSignature(t *testing.T) {
	f := newRouterFixture(t)
	other := jwt.NewJWTService("another-secret", "1h")
	token, _, err := other.GenerateAccessToken("user-1", user.RoleAdmin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RoleChecks(t *testing.T) {
	tests := []struct {
		name   string
		role   user.Role
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"specialist initiates", user.RoleSpecialist, http.MethodPost, "/api/v1/runs", map[string]string{"period": "2024-04", "entity": "Acme Corp", "manager_id": "mgr-1"}, http.StatusCreated},
		{"finance cannot initiate", user.RoleFinance, http.MethodPost, "/api/v1/runs", map[string]string{"period": "2024-04"}, http.StatusForbidden},
		{"manager rejects", user.RoleManager, http.MethodPost, "/api/v1/runs/run-1/manager/reject", map[string]string{"reason": "wrong totals"}, http.StatusOK},
		{"specialist cannot reject as manager", user.RoleSpecialist, http.MethodPost, "/api/v1/runs/run-1/manager/reject", map[string]string{"reason": "x"}, http.StatusForbidden},
		{"finance exports", user.RoleFinance, http.MethodGet, "/api/v1/runs/run-1/export?format=csv", nil, http.StatusOK},
		{"manager cannot export", user.RoleManager, http.MethodGet, "/api/v1/runs/run-1/export", nil, http.StatusForbidden},
		{"finance cannot edit payslips", user.RoleFinance, http.MethodPatch, "/api/v1/payslips/ps-1", map[string]string{"taxes": "10"}, http.StatusForbidden},
		{"admin passes every check", user.RoleAdmin, http.MethodPost, "/api/v1/runs/run-1/calculate", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)

			rec := f.do(t, tt.role, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestInitiate_UsesCallerAsSpecialist(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleSpecialist, http.MethodPost, "/api/v1/runs", map[string]string{
		"period": "2024-04", "entity": "Acme Corp", "manager_id": "mgr-1",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", f.payroll.initiateReq.SpecialistID)
	assert.Equal(t, "Acme Corp", f.payroll.initiateReq.Entity)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"id":"run-1"`)
}

func TestInitiate_ValidationErrorIs422(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleSpecialist, http.MethodPost, "/api/v1/runs", map[string]string{"entity": "Acme Corp"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "is required", env.Error.Details["period"])
	assert.Equal(t, "is required", env.Error.Details["manager_id"])
}

func TestInitiate_MalformedBody(t *testing.T) {
	f := newRouterFixture(t)
	token, _, err := f.jwt.GenerateAccessToken("user-1", user.RoleSpecialist)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransition_PassesRunReasonAndActor(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleManager, http.MethodPost, "/api/v1/runs/run-7/manager/reject", map[string]string{"reason": "bonus missing"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payroll.TransitionRequest{RunID: "run-7", ActorID: "user-1", Reason: "bonus missing"}, f.payroll.transitionReq)
}

func TestTransition_EmptyBodyIsAccepted(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleSpecialist, http.MethodPost, "/api/v1/runs/run-7/calculate", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-7", f.payroll.transitionReq.RunID)
	assert.Empty(t, f.payroll.transitionReq.Reason)
}

func TestHandleError_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"invalid transition", payroll.ErrInvalidTransition, http.StatusConflict, "INVALID_RUN_TRANSITION"},
		{"wrapped invalid transition", fmt.Errorf("approve run-1: %w", payroll.ErrInvalidTransition), http.StatusConflict, "INVALID_RUN_TRANSITION"},
		{"concurrent modification", payroll.ErrConcurrentModification, http.StatusConflict, "RUN_MODIFIED"},
		{"calculation in progress", payroll.ErrCalculationInProgress, http.StatusConflict, "CALCULATION_IN_PROGRESS"},
		{"run not found", payroll.ErrRunNotFound, http.StatusNotFound, "RUN_NOT_FOUND"},
		{"payslip not found", payroll.ErrPayslipNotFound, http.StatusNotFound, "PAYSLIP_NOT_FOUND"},
		{"phase 0 incomplete", payroll.ErrPhase0Incomplete, http.StatusBadRequest, "PHASE0_INCOMPLETE"},
		{"source not found", compensation.ErrSigningBonusNotFound, http.StatusNotFound, "SOURCE_NOT_FOUND"},
		{"validation", validator.ValidationErrors{}.Add("reason", "is required"), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.payroll.err = tt.err

			rec := f.do(t, user.RoleManager, http.MethodPost, "/api/v1/runs/run-1/manager/reject", map[string]string{"reason": "x"})

			require.Equal(t, tt.want, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestListRuns_PaginationMeta(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleFinance, http.MethodGet, "/api/v1/runs?entity=Acme+Corp&status=LOCKED&page=2&limit=20", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.payroll.filter.Entity)
	assert.Equal(t, "Acme Corp", *f.payroll.filter.Entity)
	require.NotNil(t, f.payroll.filter.Status)
	assert.Equal(t, payroll.RunStatusLocked, *f.payroll.filter.Status)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, int64(41), env.Meta.TotalItems)
	assert.Equal(t, 3, env.Meta.TotalPages)
}

func TestListRuns_InvalidPage(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleFinance, http.MethodGet, "/api/v1/runs?page=two", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditPayslip_DecodesAmounts(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleSpecialist, http.MethodPatch, "/api/v1/payslips/ps-9", map[string]string{"taxes": "250.50"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ps-9", f.payroll.editReq.PayslipID)
	assert.Equal(t, "user-1", f.payroll.editReq.ActorID)
	require.NotNil(t, f.payroll.editReq.Taxes)
	assert.True(t, decimal.RequireFromString("250.5").Equal(*f.payroll.editReq.Taxes))
	assert.Nil(t, f.payroll.editReq.BaseSalary)
}

func TestExportBankTransfer(t *testing.T) {
	t.Run("pdf by default", func(t *testing.T) {
		f := newRouterFixture(t)

		rec := f.do(t, user.RoleFinance, http.MethodGet, "/api/v1/runs/run-1/export", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="bank-transfer-2024-04.pdf"`, rec.Header().Get("Content-Disposition"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("csv", func(t *testing.T) {
		f := newRouterFixture(t)

		rec := f.do(t, user.RoleFinance, http.MethodGet, "/api/v1/runs/run-1/export?format=csv", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.Contains(t, body, "Ahmed Ali,EG-001,NBE,3700.00")
		assert.Contains(t, body, "TOTAL,,,3700.00")
	})

	t.Run("unknown format", func(t *testing.T) {
		f := newRouterFixture(t)

		rec := f.do(t, user.RoleFinance, http.MethodGet, "/api/v1/runs/run-1/export?format=xlsx", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing run", func(t *testing.T) {
		f := newRouterFixture(t)
		f.payroll.err = payroll.ErrRunNotFound

		rec := f.do(t, user.RoleFinance, http.MethodGet, "/api/v1/runs/run-1/export", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTaxReport_CSV(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleSpecialist, http.MethodGet, "/api/v1/runs/run-1/reports/tax?format=csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="tax-report-2024-04-01.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "emp-1,Ahmed Ali,3000.00,Income Tax,0.1,410.00")
}

func TestPhase0Decision_ReadsKindAndID(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleSpecialist, http.MethodPost, "/api/v1/phase0/signing-bonus/sb-1/decision", map[string]string{"decision": "approved"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, compensation.ItemKindSigningBonus, f.compensation.decideReq.Kind)
	assert.Equal(t, "sb-1", f.compensation.decideReq.ItemID)
	assert.Equal(t, "user-1", f.compensation.decideReq.ActorID)
	assert.Equal(t, compensation.DecisionApproved, f.compensation.decideReq.Decision)
}

func TestPhase0Decision_UnknownKind(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleSpecialist, http.MethodPost, "/api/v1/phase0/stock-option/so-1/decision", map[string]string{"decision": "APPROVED"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuditLogs_Filters(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleManager, http.MethodGet, "/api/v1/audit-logs?entity_id=run-1&action=RUN_UNFROZEN&limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.audit.filter.EntityID)
	assert.Equal(t, "run-1", *f.audit.filter.EntityID)
	require.NotNil(t, f.audit.filter.Action)
	assert.Equal(t, audit.ActionRunUnfrozen, *f.audit.filter.Action)
	assert.Equal(t, 5, f.audit.filter.Limit)
}

func TestAuditLogs_FinanceIsForbidden(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, user.RoleFinance, http.MethodGet, "/api/v1/audit-logs", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

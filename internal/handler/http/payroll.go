package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/export"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Lifecycle
	Initiate(w http.ResponseWriter, r *http.Request)
	Calculate(w http.ResponseWriter, r *http.Request)
	Submit(w http.ResponseWriter, r *http.Request)
	ManagerApprove(w http.ResponseWriter, r *http.Request)
	ManagerReject(w http.ResponseWriter, r *http.Request)
	FinanceApprove(w http.ResponseWriter, r *http.Request)
	FinanceReject(w http.ResponseWriter, r *http.Request)
	Execute(w http.ResponseWriter, r *http.Request)
	Reconcile(w http.ResponseWriter, r *http.Request)
	Unfreeze(w http.ResponseWriter, r *http.Request)

	// Runs
	GetRun(w http.ResponseWriter, r *http.Request)
	CurrentRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)

	// Payslips
	ListPayslips(w http.ResponseWriter, r *http.Request)
	GetPayslip(w http.ResponseWriter, r *http.Request)
	EditPayslip(w http.ResponseWriter, r *http.Request)

	// Anomalies
	ListAnomalies(w http.ResponseWriter, r *http.Request)
	ResolveAnomaly(w http.ResponseWriter, r *http.Request)
	UnresolveAnomaly(w http.ResponseWriter, r *http.Request)

	// Reports and export
	SummaryReport(w http.ResponseWriter, r *http.Request)
	TaxReport(w http.ResponseWriter, r *http.Request)
	ExportBankTransfer(w http.ResponseWriter, r *http.Request)
	ArchiveBankTransfer(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

func actorID(r *http.Request) string {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor.UserID
}

// decodeOptionalBody accepts an empty body for endpoints whose fields are all optional.
func decodeOptionalBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// transitionRequest reads the run id from the path and the optional reason from the body.
func transitionRequest(r *http.Request) (payroll.TransitionRequest, error) {
	var req payroll.TransitionRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		return req, err
	}
	req.RunID = chi.URLParam(r, "id")
	req.ActorID = actorID(r)
	return req, nil
}

// ========== LIFECYCLE ==========

func (h *payrollHandlerImpl) Initiate(w http.ResponseWriter, r *http.Request) {
	var req payroll.InitiateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.SpecialistID = actorID(r)

	result, err := h.payrollService.Initiate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run initiated", result)
}

func (h *payrollHandlerImpl) transition(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	fn func(*http.Request, payroll.TransitionRequest) (payroll.RunResponse, error),
) {
	req, err := transitionRequest(r)
	if err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := fn(r, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, message, result)
}

func (h *payrollHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll calculated", func(r *http.Request, req payroll.TransitionRequest) (payroll.RunResponse, error) {
		return h.payrollService.Calculate(r.Context(), req)
	})
}

func (h *payrollHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll submitted for review", func(r *http.Request, req payroll.TransitionRequest) (payroll.RunResponse, error) {
		return h.payrollService.SubmitForReview(r.Context(), req)
	})
}

func (h *payrollHandlerImpl) ManagerApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll approved by manager", func(r *http.Request, req payroll.TransitionRequest) (payroll.RunResponse, error) {
		return h.payrollService.ManagerApprove(r.Context(), req)
	})
}

func (h *payrollHandlerImpl) ManagerReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll rejected by manager", func(r *http.Request, req payroll.TransitionRequest) (payroll.RunResponse, error) {
		return h.payrollService.ManagerReject(r.Context(), req)
	})
}

func (h *payrollHandlerImpl) FinanceApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll approved by finance", func(r *http.Request, req payroll.TransitionRequest) (payroll.RunResponse, error) {
		return h.payrollService.FinanceApprove(r.Context(), req)
	})
}

func (h *payrollHandlerImpl) FinanceReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll rejected by finance", func(r *http.Request, req payroll.TransitionRequest) (payroll.RunResponse, error) {
		return h.payrollService.FinanceReject(r.Context(), req)
	})
}

func (h *payrollHandlerImpl) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll run unfrozen", func(r *http.Request, req payroll.TransitionRequest) (payroll.RunResponse, error) {
		return h.payrollService.Unfreeze(r.Context(), req)
	})
}

func (h *payrollHandlerImpl) Execute(w http.ResponseWriter, r *http.Request) {
	req, err := transitionRequest(r)
	if err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.Execute(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll executed", result)
}

func (h *payrollHandlerImpl) Reconcile(w http.ResponseWriter, r *http.Request) {
	req, err := transitionRequest(r)
	if err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.Reconcile(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	result, err := h.payrollService.GetRun(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) CurrentRun(w http.ResponseWriter, r *http.Request) {
	var entity *string
	if e := r.URL.Query().Get("entity"); e != "" {
		entity = &e
	}

	result, err := h.payrollService.CurrentRun(r.Context(), entity)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter payroll.RunFilter
	if e := query.Get("entity"); e != "" {
		filter.Entity = &e
	}
	if s := query.Get("status"); s != "" {
		status := payroll.RunStatus(s)
		filter.Status = &status
	}
	if p := query.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil {
			response.BadRequest(w, "Invalid page", nil)
			return
		}
		filter.Page = page
	}
	if l := query.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			response.BadRequest(w, "Invalid limit", nil)
			return
		}
		filter.Limit = limit
	}

	result, err := h.payrollService.RunHistory(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

// ========== PAYSLIPS ==========

func (h *payrollHandlerImpl) ListPayslips(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.ListPayslips(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetPayslip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payslip ID is required", nil)
		return
	}

	result, err := h.payrollService.GetPayslip(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) EditPayslip(w http.ResponseWriter, r *http.Request) {
	var req payroll.EditPayslipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.PayslipID = chi.URLParam(r, "id")
	req.ActorID = actorID(r)

	result, err := h.payrollService.EditPayslip(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payslip updated", result)
}

// ========== ANOMALIES ==========

func (h *payrollHandlerImpl) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.ListAnomalies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	var req payroll.ResolveAnomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.PayslipID = chi.URLParam(r, "id")
	req.ActorID = actorID(r)

	if err := h.payrollService.ResolveAnomaly(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Anomaly marked as resolved", nil)
}

func (h *payrollHandlerImpl) UnresolveAnomaly(w http.ResponseWriter, r *http.Request) {
	if err := h.payrollService.UnresolveAnomaly(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Anomaly resolution removed", nil)
}

// ========== REPORTS ==========

func (h *payrollHandlerImpl) SummaryReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.SummaryReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) TaxReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.TaxReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		response.Success(w, result)
	case "csv":
		var rows []export.TaxRow
		for _, row := range result.Rows {
			for _, tax := range row.Taxes {
				rows = append(rows, export.TaxRow{
					EmployeeID:   row.EmployeeID,
					EmployeeName: row.EmployeeName,
					BaseSalary:   row.BaseSalary,
					TaxName:      tax.Name,
					Rate:         tax.Rate,
					Amount:       tax.Amount,
				})
			}
		}

		var buf bytes.Buffer
		if err := export.WriteTaxReportCSV(&buf, rows); err != nil {
			response.HandleError(w, err)
			return
		}
		response.File(w, fmt.Sprintf("tax-report-%s.csv", result.Period), "text/csv", buf.Bytes())
	default:
		response.BadRequest(w, "Unsupported format", map[string]string{"format": "must be json or csv"})
	}
}

func (h *payrollHandlerImpl) ExportBankTransfer(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}
	if format != "pdf" && format != "csv" {
		response.BadRequest(w, "Unsupported format", map[string]string{"format": "must be pdf or csv"})
		return
	}

	doc, err := h.payrollService.BankTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filename := fmt.Sprintf("bank-transfer-%s.%s", doc.Period.Format("2006-01"), format)

	var buf bytes.Buffer
	if format == "csv" {
		if err := export.WriteBankTransferCSV(&buf, doc); err != nil {
			response.HandleError(w, err)
			return
		}
		response.File(w, filename, "text/csv", buf.Bytes())
		return
	}

	if err := export.WriteBankTransferPDF(&buf, doc); err != nil {
		response.HandleError(w, err)
		return
	}
	response.File(w, filename, "application/pdf", buf.Bytes())
}

func (h *payrollHandlerImpl) ArchiveBankTransfer(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.ArchiveBankTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Bank transfer archived", result)
}

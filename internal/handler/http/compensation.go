package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/compensation"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type CompensationHandler interface {
	Phase0Status(w http.ResponseWriter, r *http.Request)
	ListPending(w http.ResponseWriter, r *http.Request)
	Decide(w http.ResponseWriter, r *http.Request)
	EditAmount(w http.ResponseWriter, r *http.Request)
}

type compensationHandlerImpl struct {
	compensationService compensation.CompensationService
}

func NewCompensationHandler(compensationService compensation.CompensationService) CompensationHandler {
	return &compensationHandlerImpl{compensationService: compensationService}
}

func (h *compensationHandlerImpl) Phase0Status(w http.ResponseWriter, r *http.Request) {
	result, err := h.compensationService.Phase0Status(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *compensationHandlerImpl) ListPending(w http.ResponseWriter, r *http.Request) {
	result, err := h.compensationService.ListPendingItems(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *compensationHandlerImpl) Decide(w http.ResponseWriter, r *http.Request) {
	var req compensation.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.Kind = compensation.ItemKind(chi.URLParam(r, "kind"))
	req.ItemID = chi.URLParam(r, "id")
	req.ActorID = actorID(r)

	if err := h.compensationService.Decide(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Decision recorded", nil)
}

func (h *compensationHandlerImpl) EditAmount(w http.ResponseWriter, r *http.Request) {
	var req compensation.EditAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.Kind = compensation.ItemKind(chi.URLParam(r, "kind"))
	req.ItemID = chi.URLParam(r, "id")
	req.ActorID = actorID(r)

	if err := h.compensationService.EditAmount(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Amount updated", nil)
}

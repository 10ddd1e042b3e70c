package http

import (
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
)

type AuditHandler interface {
	List(w http.ResponseWriter, r *http.Request)
}

type auditHandlerImpl struct {
	auditService audit.AuditService
}

func NewAuditHandler(auditService audit.AuditService) AuditHandler {
	return &auditHandlerImpl{auditService: auditService}
}

// List returns audit entries, newest first. Supports entity_id, action and limit.
func (h *auditHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter audit.AuditFilter
	if id := query.Get("entity_id"); id != "" {
		filter.EntityID = &id
	}
	if a := query.Get("action"); a != "" {
		action := audit.Action(a)
		filter.Action = &action
	}
	if l := query.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			response.BadRequest(w, "Invalid limit", nil)
			return
		}
		filter.Limit = limit
	}

	result, err := h.auditService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

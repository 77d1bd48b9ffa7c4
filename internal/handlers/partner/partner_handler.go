// internal/handlers/partner/partner_handler.go
package partner

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	leaddomain "arborlead-service/internal/domain/lead"
	"arborlead-service/internal/middleware"
	"arborlead-service/internal/pkg/response"
	partnersvc "arborlead-service/internal/service/partner"
	"arborlead-service/internal/service/workflow"
)

// PartnerHandler exposes the partner-facing lead surface and the admin
// partner directory.
type PartnerHandler struct {
	workflow *workflow.WorkflowService
	partners *partnersvc.PartnerService
}

func NewPartnerHandler(wf *workflow.WorkflowService, partners *partnersvc.PartnerService) *PartnerHandler {
	return &PartnerHandler{workflow: wf, partners: partners}
}

func actorFrom(c *gin.Context) workflow.Actor {
	return workflow.Actor{
		ID:   middleware.MustGetUserID(c),
		Role: middleware.GetRole(c),
	}
}

func leadID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid lead id", err)
		return 0, false
	}
	return id, true
}

// MyLeads lists the calling partner's leads. Assigned-but-unaccepted
// leads come back redacted.
func (h *PartnerHandler) MyLeads(c *gin.Context) {
	var f leaddomain.ListFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	leads, err := h.workflow.PartnerLeads(c.Request.Context(), middleware.MustGetUserID(c), f)
	if err != nil {
		response.DomainError(c, "failed to list leads", err)
		return
	}
	response.Success(c, http.StatusOK, "leads", leads)
}

func (h *PartnerHandler) LeadDetail(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	detail, err := h.workflow.PartnerLeadDetail(c.Request.Context(), id, middleware.MustGetUserID(c))
	if err != nil {
		response.DomainError(c, "failed to load lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead", detail)
}

// Accept takes an assigned lead and triggers the acceptance charge.
func (h *PartnerHandler) Accept(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	l, err := h.workflow.AcceptLead(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to accept lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead accepted", l)
}

func (h *PartnerHandler) Reject(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	l, err := h.workflow.RejectLead(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to reject lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead rejected", l)
}

// ListPartners is the admin directory, optionally filtered by region.
func (h *PartnerHandler) ListPartners(c *gin.Context) {
	partners, err := h.partners.ListPartners(c.Request.Context(), c.Query("region"))
	if err != nil {
		response.DomainError(c, "failed to list partners", err)
		return
	}
	response.Success(c, http.StatusOK, "partners", partners)
}

// TopPartners ranks partners for the assignment UI.
func (h *PartnerHandler) TopPartners(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rankings, err := h.partners.TopPartners(c.Request.Context(), c.Query("region"), limit)
	if err != nil {
		response.DomainError(c, "failed to rank partners", err)
		return
	}
	response.Success(c, http.StatusOK, "top partners", rankings)
}

// internal/handlers/lead/lead_handler.go
package lead

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	leaddomain "arborlead-service/internal/domain/lead"
	"arborlead-service/internal/middleware"
	"arborlead-service/internal/pkg/response"
	"arborlead-service/internal/service/workflow"
)

// LeadHandler exposes the admin lead management surface.
type LeadHandler struct {
	workflow *workflow.WorkflowService
}

func NewLeadHandler(wf *workflow.WorkflowService) *LeadHandler {
	return &LeadHandler{workflow: wf}
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

func (h *LeadHandler) Create(c *gin.Context) {
	var req leaddomain.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid lead payload", err)
		return
	}

	// Intake is also reachable unauthenticated from the marketing site.
	creatorID, _ := middleware.GetUserID(c)

	l, err := h.workflow.CreateLead(c.Request.Context(), &req, creatorID)
	if err != nil {
		response.DomainError(c, "failed to create lead", err)
		return
	}
	response.Success(c, http.StatusCreated, "lead created", l)
}

func (h *LeadHandler) Get(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	l, err := h.workflow.GetLead(c.Request.Context(), id)
	if err != nil {
		response.DomainError(c, "failed to load lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead", l)
}

func (h *LeadHandler) List(c *gin.Context) {
	var f leaddomain.ListFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}
	leads, err := h.workflow.ListLeads(c.Request.Context(), f)
	if err != nil {
		response.DomainError(c, "failed to list leads", err)
		return
	}
	response.Success(c, http.StatusOK, "leads", leads)
}

func (h *LeadHandler) Update(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req leaddomain.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid lead payload", err)
		return
	}
	l, err := h.workflow.UpdateLead(c.Request.Context(), id, &req)
	if err != nil {
		response.DomainError(c, "failed to update lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead updated", l)
}

func (h *LeadHandler) Delete(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	if err := h.workflow.DeleteLead(c.Request.Context(), id); err != nil {
		response.DomainError(c, "failed to delete lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead deleted", nil)
}

func (h *LeadHandler) Assign(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req leaddomain.AssignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid assignment payload", err)
		return
	}

	l, err := h.workflow.AssignLead(c.Request.Context(), id, req.PartnerID, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to assign lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead assigned", l)
}

// ChangeStatus is the generic admin transition endpoint.
func (h *LeadHandler) ChangeStatus(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req leaddomain.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid status payload", err)
		return
	}

	l, err := h.workflow.ChangeStatus(c.Request.Context(), id, req.Status, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to change status", err)
		return
	}
	response.Success(c, http.StatusOK, "status changed", l)
}

func (h *LeadHandler) Recall(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	l, err := h.workflow.RecallLead(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to recall lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead recalled", l)
}

// Bill charges the acceptance fee manually. Idempotent.
func (h *LeadHandler) Bill(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	l, charged, err := h.workflow.BillLead(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to bill lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead billed", gin.H{"lead": l, "charged": charged})
}

func (h *LeadHandler) Complete(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	l, err := h.workflow.CompleteLead(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to complete lead", err)
		return
	}
	response.Success(c, http.StatusOK, "lead completed", l)
}

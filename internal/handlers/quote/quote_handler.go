// internal/handlers/quote/quote_handler.go
package quote

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	quotedomain "arborlead-service/internal/domain/quote"
	"arborlead-service/internal/middleware"
	"arborlead-service/internal/pkg/response"
	"arborlead-service/internal/service/workflow"
)

type QuoteHandler struct {
	workflow *workflow.WorkflowService
}

func NewQuoteHandler(wf *workflow.WorkflowService) *QuoteHandler {
	return &QuoteHandler{workflow: wf}
}

func actorFrom(c *gin.Context) workflow.Actor {
	return workflow.Actor{
		ID:   middleware.MustGetUserID(c),
		Role: middleware.GetRole(c),
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}

// Create prices a draft quote for an accepted lead, or re-prices an
// existing draft appending a version.
func (h *QuoteHandler) Create(c *gin.Context) {
	var req quotedomain.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid quote payload", err)
		return
	}

	q, err := h.workflow.CreateOrUpdateQuote(c.Request.Context(), &req, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to save quote", err)
		return
	}
	response.Success(c, http.StatusCreated, "quote saved", q)
}

// Update re-prices the draft for a lead, the lead id comes from the path.
func (h *QuoteHandler) Update(c *gin.Context) {
	leadID, ok := pathID(c, "lead_id")
	if !ok {
		return
	}
	var req quotedomain.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid quote payload", err)
		return
	}

	q, err := h.workflow.CreateOrUpdateQuote(c.Request.Context(), &quotedomain.CreateQuoteRequest{
		LeadID:         leadID,
		Items:          req.Items,
		ApplyDiscount:  req.ApplyDiscount,
		DiscountRate:   req.DiscountRate,
		CommissionRate: req.CommissionRate,
	}, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to update quote", err)
		return
	}
	response.Success(c, http.StatusOK, "quote updated", q)
}

func (h *QuoteHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	q, err := h.workflow.GetQuote(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to load quote", err)
		return
	}
	response.Success(c, http.StatusOK, "quote", q)
}

func (h *QuoteHandler) GetForLead(c *gin.Context) {
	leadID, ok := pathID(c, "lead_id")
	if !ok {
		return
	}
	q, err := h.workflow.GetQuoteForLead(c.Request.Context(), leadID, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to load quote", err)
		return
	}
	response.Success(c, http.StatusOK, "quote", q)
}

// Send locks the quote and emails the offert to the customer.
func (h *QuoteHandler) Send(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	q, err := h.workflow.SendQuote(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		response.DomainError(c, "failed to send quote", err)
		return
	}
	response.Success(c, http.StatusOK, "quote sent", q)
}

// Respond is the public customer decision endpoint, addressed by the
// quote reference from the offert email. No authentication.
func (h *QuoteHandler) Respond(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		response.ValidationError(c, "missing quote reference", nil)
		return
	}
	var req quotedomain.CustomerResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid response payload", err)
		return
	}

	q, err := h.workflow.RespondToQuote(c.Request.Context(), reference, req.Approve)
	if err != nil {
		response.DomainError(c, "failed to record response", err)
		return
	}
	response.Success(c, http.StatusOK, "response recorded", gin.H{
		"reference": q.Reference,
		"status":    q.Status,
	})
}

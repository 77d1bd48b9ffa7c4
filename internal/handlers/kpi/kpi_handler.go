// internal/handlers/kpi/kpi_handler.go
package kpi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	kpidomain "arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/pkg/response"
	kpisvc "arborlead-service/internal/service/kpi"
)

// KPIHandler exposes the admin analytics surface.
type KPIHandler struct {
	kpiService *kpisvc.KPIService
}

func NewKPIHandler(kpiService *kpisvc.KPIService) *KPIHandler {
	return &KPIHandler{kpiService: kpiService}
}

func (h *KPIHandler) Events(c *gin.Context) {
	var f kpidomain.EventFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}
	events, err := h.kpiService.ListEvents(c.Request.Context(), f)
	if err != nil {
		response.DomainError(c, "failed to list events", err)
		return
	}
	response.Success(c, http.StatusOK, "events", events)
}

func (h *KPIHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.kpiService.Dashboard(c.Request.Context())
	if err != nil {
		response.DomainError(c, "failed to build dashboard", err)
		return
	}
	response.Success(c, http.StatusOK, "dashboard", dashboard)
}

// Calculate triggers the metrics sweep on demand, outside its schedule.
func (h *KPIHandler) Calculate(c *gin.Context) {
	if err := h.kpiService.CalculateMetrics(c.Request.Context()); err != nil {
		response.DomainError(c, "failed to calculate metrics", err)
		return
	}
	response.Success(c, http.StatusOK, "metrics calculated", nil)
}

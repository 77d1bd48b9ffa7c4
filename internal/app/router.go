// internal/app/router.go
package app

import (
	authHandler "arborlead-service/internal/handlers/auth"
	kpiHandler "arborlead-service/internal/handlers/kpi"
	leadHandler "arborlead-service/internal/handlers/lead"
	partnerHandler "arborlead-service/internal/handlers/partner"
	quoteHandler "arborlead-service/internal/handlers/quote"
	wsHandler "arborlead-service/internal/handlers/ws"
	"arborlead-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	LeadHandler    *leadHandler.LeadHandler
	PartnerHandler *partnerHandler.PartnerHandler
	QuoteHandler   *quoteHandler.QuoteHandler
	KPIHandler     *kpiHandler.KPIHandler
	WSHandler      *wsHandler.WSHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", append(h.AuthMiddleware.PartnerOrAdmin(), h.WSHandler.Connect)...)

	// ==================== Public Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/refresh", h.AuthHandler.Refresh)
	}

	// Customer quote response, addressed by the reference from the
	// offert email. No authentication.
	api.POST("/quotes/respond/:reference", h.QuoteHandler.Respond)

	// Public lead intake from the marketing site.
	api.POST("/leads/intake", h.LeadHandler.Create)

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.GET("/me", h.AuthHandler.Me)
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.PUT("/change-password", h.AuthHandler.ChangePassword)
	}

	// ==================== Admin: Leads ====================
	adminLeads := api.Group("/admin/leads", h.AuthMiddleware.AdminOnly()...)
	{
		adminLeads.POST("", h.LeadHandler.Create)
		adminLeads.GET("", h.LeadHandler.List)
		adminLeads.GET("/:id", h.LeadHandler.Get)
		adminLeads.PUT("/:id", h.LeadHandler.Update)
		adminLeads.DELETE("/:id", h.LeadHandler.Delete)
		adminLeads.POST("/:id/assign", h.LeadHandler.Assign)
		adminLeads.POST("/:id/status", h.LeadHandler.ChangeStatus)
		adminLeads.POST("/:id/recall", h.LeadHandler.Recall)
		adminLeads.POST("/:id/bill", h.LeadHandler.Bill)
		adminLeads.POST("/:id/complete", h.LeadHandler.Complete)
	}

	// ==================== Admin: Partners ====================
	adminPartners := api.Group("/admin/partners", h.AuthMiddleware.AdminOnly()...)
	{
		adminPartners.POST("", h.AuthHandler.CreatePartner)
		adminPartners.GET("", h.PartnerHandler.ListPartners)
		adminPartners.GET("/top", h.PartnerHandler.TopPartners)
	}

	// ==================== Admin: KPI ====================
	adminKPI := api.Group("/admin/kpi", h.AuthMiddleware.AdminOnly()...)
	{
		adminKPI.GET("/events", h.KPIHandler.Events)
		adminKPI.GET("/dashboard", h.KPIHandler.Dashboard)
		adminKPI.POST("/calculate", h.KPIHandler.Calculate)
	}

	// ==================== Partner: Leads ====================
	partnerLeads := api.Group("/partner/leads", h.AuthMiddleware.PartnerOnly()...)
	{
		partnerLeads.GET("", h.PartnerHandler.MyLeads)
		partnerLeads.GET("/:id", h.PartnerHandler.LeadDetail)
		partnerLeads.POST("/:id/accept", h.PartnerHandler.Accept)
		partnerLeads.POST("/:id/reject", h.PartnerHandler.Reject)
		partnerLeads.POST("/:id/recall", h.LeadHandler.Recall)
		partnerLeads.POST("/:id/complete", h.LeadHandler.Complete)
	}

	// ==================== Quotes (partner or admin) ====================
	quotes := api.Group("/quotes", h.AuthMiddleware.PartnerOrAdmin()...)
	{
		quotes.POST("", h.QuoteHandler.Create)
		quotes.GET("/:id", h.QuoteHandler.Get)
		quotes.POST("/:id/send", h.QuoteHandler.Send)
	}
	leadQuotes := api.Group("/leads/:lead_id/quote", h.AuthMiddleware.PartnerOrAdmin()...)
	{
		leadQuotes.GET("", h.QuoteHandler.GetForLead)
		leadQuotes.PUT("", h.QuoteHandler.Update)
	}
}

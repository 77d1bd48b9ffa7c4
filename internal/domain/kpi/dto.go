// internal/domain/kpi/dto.go
package kpi

import "github.com/shopspring/decimal"

// EventFilters narrows event listings. Zero values mean "any".
type EventFilters struct {
	EventType string `form:"event_type"`
	LeadID    int64  `form:"lead_id"`
	UserID    int64  `form:"user_id"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// StageAverages are the funnel stage durations in hours, averaged over
// every lead that reached the stage.
type StageAverages struct {
	AssignmentHours       float64 `json:"assignment_hours"`
	PartnerResponseHours  float64 `json:"partner_response_hours"`
	QuoteSubmissionHours  float64 `json:"quote_submission_hours"`
	CustomerDecisionHours float64 `json:"customer_decision_hours"`
}

// Revenue breaks platform income into lead fees and commissions.
type Revenue struct {
	LeadRevenue       decimal.Decimal `json:"lead_revenue"`
	CommissionRevenue decimal.Decimal `json:"commission_revenue"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
}

// PartnerAcceptance is one partner's accept performance.
type PartnerAcceptance struct {
	PartnerID      int64   `json:"partner_id"`
	AssignedCount  int64   `json:"assigned_count"`
	AcceptedCount  int64   `json:"accepted_count"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// Dashboard is the admin overview payload, cached between sweeps.
type Dashboard struct {
	Metrics      map[string]float64 `json:"metrics"`
	StatusCounts map[string]int64   `json:"status_counts"`
	Revenue      Revenue            `json:"revenue"`
}

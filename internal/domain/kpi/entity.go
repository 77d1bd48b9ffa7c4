// internal/domain/kpi/entity.go
package kpi

import (
	"database/sql"
	"time"
)

// EventType is the KPI event vocabulary, snake_case throughout.
type EventType string

const (
	EventLeadCreated        EventType = "lead_created"
	EventLeadAssigned       EventType = "lead_assigned"
	EventLeadStatusChanged  EventType = "lead_status_changed"
	EventLeadAccepted       EventType = "lead_accepted"
	EventLeadRejected       EventType = "lead_rejected"
	EventLeadRecalled       EventType = "lead_recalled"
	EventLeadDetailsViewed  EventType = "lead_details_viewed"
	EventLeadExpired        EventType = "lead_expired"
	EventQuoteCreated       EventType = "quote_created"
	EventQuoteUpdated       EventType = "quote_updated"
	EventQuoteSent          EventType = "quote_sent"
	EventQuoteApproved      EventType = "quote_approved"
	EventQuoteDeclined      EventType = "quote_declined"
	EventLeadBillingCharged EventType = "lead_billing_charged"
	EventCommissionDeducted EventType = "commission_deducted"
	EventPartnerInvoiced    EventType = "partner_invoiced"
)

// Event is one append-only analytics fact. Data carries event-specific
// context as a JSON document.
type Event struct {
	ID        int64          `json:"id" db:"id"`
	EventType EventType      `json:"event_type" db:"event_type"`
	LeadID    sql.NullInt64  `json:"lead_id,omitempty" db:"lead_id"`
	UserID    sql.NullInt64  `json:"user_id,omitempty" db:"user_id"`
	QuoteID   sql.NullInt64  `json:"quote_id,omitempty" db:"quote_id"`
	Data      sql.NullString `json:"data,omitempty" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Metric is a stored aggregate for a named KPI over a time period.
type Metric struct {
	ID          int64          `json:"id" db:"id"`
	MetricName  string         `json:"metric_name" db:"metric_name"`
	MetricValue float64        `json:"metric_value" db:"metric_value"`
	TimePeriod  sql.NullString `json:"time_period,omitempty" db:"time_period"`
	PeriodStart sql.NullTime   `json:"period_start,omitempty" db:"period_start"`
	PeriodEnd   sql.NullTime   `json:"period_end,omitempty" db:"period_end"`
	UserID      sql.NullInt64  `json:"user_id,omitempty" db:"user_id"`
	Region      sql.NullString `json:"region,omitempty" db:"region"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// Metric names computed by the daily sweep.
const (
	MetricAvgLeadAssignmentTime  = "avg_lead_assignment_time"
	MetricAvgPartnerResponseTime = "avg_partner_response_time"
	MetricAvgQuoteSubmissionTime = "avg_quote_submission_time"
	MetricAvgCustomerDecision    = "avg_customer_decision_time"
	MetricMissedLeadsCount       = "missed_leads_count"
	MetricQuotesAcceptedPercent  = "quotes_accepted_percent"
	MetricAverageJobValue        = "average_job_value"
	MetricTotalRevenue           = "total_revenue"
	MetricPartnerAcceptanceRate  = "partner_acceptance_rate"
)

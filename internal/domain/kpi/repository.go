// internal/domain/kpi/repository.go
package kpi

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository persists KPI events and computed metrics, and exposes the
// aggregate queries the daily sweep and dashboard read from.
type Repository interface {
	CreateEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, f EventFilters) ([]Event, error)

	CreateMetric(ctx context.Context, m *Metric) error
	// LatestMetrics returns the most recent value per metric name.
	LatestMetrics(ctx context.Context) (map[string]float64, error)

	// Aggregates over the lead and quote tables.
	StatusCounts(ctx context.Context) (map[string]int64, error)
	AverageStageHours(ctx context.Context) (*StageAverages, error)
	// RevenueTotals sums lead fees on billed leads and commissions on
	// approved quotes.
	RevenueTotals(ctx context.Context) (*Revenue, error)
	PartnerAcceptance(ctx context.Context) ([]PartnerAcceptance, error)
	// MissedLeadCount counts expired leads.
	MissedLeadCount(ctx context.Context) (int64, error)
	// ApprovedQuoteStats returns the count and summed totals of
	// approved quotes for acceptance rate and job value metrics.
	ApprovedQuoteStats(ctx context.Context) (count int64, quoted int64, totalValue decimal.Decimal, err error)
}

// internal/repository/postgres/kpi_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/domain/quote"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type KPIRepository struct {
	db *pgxpool.Pool
}

func NewKPIRepository(db *pgxpool.Pool) *KPIRepository {
	return &KPIRepository{db: db}
}

func (r *KPIRepository) CreateEvent(ctx context.Context, e *kpi.Event) error {
	query := `
		INSERT INTO kpi_events (event_type, lead_id, user_id, quote_id, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(
		ctx, query,
		e.EventType, e.LeadID, e.UserID, e.QuoteID, e.Data,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create kpi event: %w", err)
	}
	return nil
}

func (r *KPIRepository) ListEvents(ctx context.Context, f kpi.EventFilters) ([]kpi.Event, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if f.EventType != "" {
		args = append(args, f.EventType)
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if f.LeadID != 0 {
		args = append(args, f.LeadID)
		conditions = append(conditions, fmt.Sprintf("lead_id = $%d", len(args)))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT id, event_type, lead_id, user_id, quote_id, data, created_at FROM kpi_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list kpi events: %w", err)
	}
	defer rows.Close()

	var events []kpi.Event
	for rows.Next() {
		var e kpi.Event
		if err := rows.Scan(&e.ID, &e.EventType, &e.LeadID, &e.UserID, &e.QuoteID, &e.Data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan kpi event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *KPIRepository) CreateMetric(ctx context.Context, m *kpi.Metric) error {
	query := `
		INSERT INTO kpi_metrics (metric_name, metric_value, time_period, period_start, period_end, user_id, region)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(
		ctx, query,
		m.MetricName, m.MetricValue, m.TimePeriod, m.PeriodStart, m.PeriodEnd, m.UserID, m.Region,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create kpi metric: %w", err)
	}
	return nil
}

// LatestMetrics picks the newest stored value per metric name, skipping
// per-partner rows.
func (r *KPIRepository) LatestMetrics(ctx context.Context) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (metric_name) metric_name, metric_value
		FROM kpi_metrics
		WHERE user_id IS NULL
		ORDER BY metric_name, created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[name] = value
	}
	return metrics, rows.Err()
}

func (r *KPIRepository) StatusCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count lead statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// AverageStageHours computes funnel stage durations over leads that
// reached each stage.
func (r *KPIRepository) AverageStageHours(ctx context.Context) (*kpi.StageAverages, error) {
	query := `
		SELECT
			COALESCE(AVG(EXTRACT(EPOCH FROM (assigned_at - created_at)) / 3600.0)
			         FILTER (WHERE assigned_at IS NOT NULL), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (accepted_at - assigned_at)) / 3600.0)
			         FILTER (WHERE accepted_at IS NOT NULL AND assigned_at IS NOT NULL), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (quoted_at - accepted_at)) / 3600.0)
			         FILTER (WHERE quoted_at IS NOT NULL AND accepted_at IS NOT NULL), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (customer_response_at - quoted_at)) / 3600.0)
			         FILTER (WHERE customer_response_at IS NOT NULL AND quoted_at IS NOT NULL), 0)
		FROM leads
	`
	var s kpi.StageAverages
	err := r.db.QueryRow(ctx, query).Scan(
		&s.AssignmentHours, &s.PartnerResponseHours, &s.QuoteSubmissionHours, &s.CustomerDecisionHours,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stage averages: %w", err)
	}
	return &s, nil
}

// RevenueTotals sums acceptance fees on billed leads and commissions on
// approved quotes.
func (r *KPIRepository) RevenueTotals(ctx context.Context) (*kpi.Revenue, error) {
	var rev kpi.Revenue
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(lead_fee) FILTER (WHERE billed), 0) FROM leads
	`).Scan(&rev.LeadRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to sum lead revenue: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(commission), 0) FROM quotes WHERE status = $1
	`, quote.StatusApproved).Scan(&rev.CommissionRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to sum commission revenue: %w", err)
	}

	rev.TotalRevenue = rev.LeadRevenue.Add(rev.CommissionRevenue)
	return &rev, nil
}

func (r *KPIRepository) PartnerAcceptance(ctx context.Context) ([]kpi.PartnerAcceptance, error) {
	query := `
		SELECT assigned_partner_id,
		       COUNT(*) AS assigned,
		       COUNT(*) FILTER (WHERE accepted_at IS NOT NULL) AS accepted
		FROM leads
		WHERE assigned_partner_id IS NOT NULL
		GROUP BY assigned_partner_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute partner acceptance: %w", err)
	}
	defer rows.Close()

	var results []kpi.PartnerAcceptance
	for rows.Next() {
		var p kpi.PartnerAcceptance
		if err := rows.Scan(&p.PartnerID, &p.AssignedCount, &p.AcceptedCount); err != nil {
			return nil, fmt.Errorf("failed to scan partner acceptance: %w", err)
		}
		if p.AssignedCount > 0 {
			p.AcceptanceRate = float64(p.AcceptedCount) / float64(p.AssignedCount) * 100
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *KPIRepository) MissedLeadCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE status = 'expired'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count missed leads: %w", err)
	}
	return count, nil
}

func (r *KPIRepository) ApprovedQuoteStats(ctx context.Context) (int64, int64, decimal.Decimal, error) {
	var (
		approved   int64
		quoted     int64
		totalValue decimal.Decimal
	)
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = $1),
		       COUNT(*) FILTER (WHERE sent_at IS NOT NULL),
		       COALESCE(SUM(final_total) FILTER (WHERE status = $1), 0)
		FROM quotes
	`, quote.StatusApproved).Scan(&approved, &quoted, &totalValue)
	if err != nil {
		return 0, 0, decimal.Zero, fmt.Errorf("failed to compute quote stats: %w", err)
	}
	return approved, quoted, totalValue, nil
}

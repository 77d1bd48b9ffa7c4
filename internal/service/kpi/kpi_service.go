// internal/service/kpi/kpi_service.go
package kpi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/pkg/cache"
)

const (
	dashboardCacheKey = "kpi:dashboard"
	dashboardCacheTTL = 5 * time.Minute
)

// KPIService records analytics events and computes the stored metrics
// the admin dashboard reads.
type KPIService struct {
	repo   kpi.Repository
	cache  *cache.Client
	logger *zap.Logger
}

func NewKPIService(repo kpi.Repository, cacheClient *cache.Client, logger *zap.Logger) *KPIService {
	return &KPIService{repo: repo, cache: cacheClient, logger: logger}
}

// EventContext carries the optional references an event may attach.
type EventContext struct {
	LeadID  int64
	UserID  int64
	QuoteID int64
	Data    map[string]interface{}
}

// LogEvent records an analytics fact. Recording is best-effort: a
// failed insert is logged and swallowed so analytics never unwinds a
// completed workflow write.
func (s *KPIService) LogEvent(ctx context.Context, eventType kpi.EventType, ec EventContext) {
	e := &kpi.Event{EventType: eventType}
	if ec.LeadID != 0 {
		e.LeadID = sql.NullInt64{Int64: ec.LeadID, Valid: true}
	}
	if ec.UserID != 0 {
		e.UserID = sql.NullInt64{Int64: ec.UserID, Valid: true}
	}
	if ec.QuoteID != 0 {
		e.QuoteID = sql.NullInt64{Int64: ec.QuoteID, Valid: true}
	}
	if len(ec.Data) > 0 {
		raw, err := json.Marshal(ec.Data)
		if err == nil {
			e.Data = sql.NullString{String: string(raw), Valid: true}
		}
	}

	if err := s.repo.CreateEvent(ctx, e); err != nil {
		s.logger.Error("failed to record kpi event",
			zap.String("event_type", string(eventType)),
			zap.Int64("lead_id", ec.LeadID),
			zap.Error(err))
	}
}

func (s *KPIService) ListEvents(ctx context.Context, f kpi.EventFilters) ([]kpi.Event, error) {
	return s.repo.ListEvents(ctx, f)
}

// CalculateMetrics computes and stores the daily KPI snapshot: funnel
// stage averages, missed leads, acceptance rate, job value, revenue and
// per-partner acceptance.
func (s *KPIService) CalculateMetrics(ctx context.Context) error {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	store := func(name string, value float64, userID int64) error {
		m := &kpi.Metric{
			MetricName:  name,
			MetricValue: value,
			TimePeriod:  sql.NullString{String: "daily", Valid: true},
			PeriodStart: sql.NullTime{Time: dayStart, Valid: true},
			PeriodEnd:   sql.NullTime{Time: dayEnd, Valid: true},
		}
		if userID != 0 {
			m.UserID = sql.NullInt64{Int64: userID, Valid: true}
		}
		return s.repo.CreateMetric(ctx, m)
	}

	stages, err := s.repo.AverageStageHours(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute stage averages: %w", err)
	}
	if err := store(kpi.MetricAvgLeadAssignmentTime, stages.AssignmentHours, 0); err != nil {
		return err
	}
	if err := store(kpi.MetricAvgPartnerResponseTime, stages.PartnerResponseHours, 0); err != nil {
		return err
	}
	if err := store(kpi.MetricAvgQuoteSubmissionTime, stages.QuoteSubmissionHours, 0); err != nil {
		return err
	}
	if err := store(kpi.MetricAvgCustomerDecision, stages.CustomerDecisionHours, 0); err != nil {
		return err
	}

	missed, err := s.repo.MissedLeadCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count missed leads: %w", err)
	}
	if err := store(kpi.MetricMissedLeadsCount, float64(missed), 0); err != nil {
		return err
	}

	approved, quoted, totalValue, err := s.repo.ApprovedQuoteStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute quote stats: %w", err)
	}
	acceptedPercent := 0.0
	avgJobValue := 0.0
	if quoted > 0 {
		acceptedPercent = float64(approved) / float64(quoted) * 100
	}
	if approved > 0 {
		avgJobValue, _ = totalValue.DivRound(decimal.NewFromInt(approved), 2).Float64()
	}
	if err := store(kpi.MetricQuotesAcceptedPercent, acceptedPercent, 0); err != nil {
		return err
	}
	if err := store(kpi.MetricAverageJobValue, avgJobValue, 0); err != nil {
		return err
	}

	revenue, err := s.repo.RevenueTotals(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute revenue: %w", err)
	}
	totalRevenue, _ := revenue.TotalRevenue.Float64()
	if err := store(kpi.MetricTotalRevenue, totalRevenue, 0); err != nil {
		return err
	}

	partnerStats, err := s.repo.PartnerAcceptance(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute partner acceptance: %w", err)
	}
	for _, p := range partnerStats {
		if err := store(kpi.MetricPartnerAcceptanceRate, p.AcceptanceRate, p.PartnerID); err != nil {
			return err
		}
	}

	// Fresh metrics invalidate the cached dashboard.
	if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}

	s.logger.Info("kpi metrics calculated",
		zap.Time("period_start", dayStart),
		zap.Int("partners", len(partnerStats)))
	return nil
}

// Dashboard assembles the admin overview, served from cache when fresh.
func (s *KPIService) Dashboard(ctx context.Context) (*kpi.Dashboard, error) {
	var cached kpi.Dashboard
	hit, err := s.cache.GetJSON(ctx, dashboardCacheKey, &cached)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	metrics, err := s.repo.LatestMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load status counts: %w", err)
	}
	revenue, err := s.repo.RevenueTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue: %w", err)
	}

	dashboard := &kpi.Dashboard{
		Metrics:      metrics,
		StatusCounts: counts,
		Revenue:      *revenue,
	}

	if err := s.cache.SetJSON(ctx, dashboardCacheKey, dashboard, dashboardCacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return dashboard, nil
}

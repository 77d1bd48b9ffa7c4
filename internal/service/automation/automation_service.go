// internal/service/automation/automation_service.go
package automation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	kpidomain "arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/domain/lead"
	"arborlead-service/internal/service/billing"
	kpisvc "arborlead-service/internal/service/kpi"
)

// Invoicer is the slice of the billing service the monthly sweep runs.
type Invoicer interface {
	GenerateMonthlyInvoices(ctx context.Context) ([]billing.Invoice, error)
}

// MetricsCalculator is the slice of the KPI service the daily sweep runs.
type MetricsCalculator interface {
	CalculateMetrics(ctx context.Context) error
}

// EventRecorder records analytics events, best-effort.
type EventRecorder interface {
	LogEvent(ctx context.Context, eventType kpidomain.EventType, ec kpisvc.EventContext)
}

// AutomationService owns the scheduled sweeps: hourly lead expiry,
// daily KPI snapshots and monthly partner invoicing.
type AutomationService struct {
	leadRepo lead.Repository
	metrics  MetricsCalculator
	invoicer Invoicer
	events   EventRecorder
	logger   *zap.Logger

	leadExpiry time.Duration
	cron       *cron.Cron
}

func NewAutomationService(
	leadRepo lead.Repository,
	metrics MetricsCalculator,
	invoicer Invoicer,
	events EventRecorder,
	leadExpiry time.Duration,
	logger *zap.Logger,
) *AutomationService {
	return &AutomationService{
		leadRepo:   leadRepo,
		metrics:    metrics,
		invoicer:   invoicer,
		events:     events,
		leadExpiry: leadExpiry,
		logger:     logger,
	}
}

// Start registers the sweep schedules and launches the cron runner.
func (s *AutomationService) Start(ctx context.Context) error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc("@hourly", func() {
		if err := s.ExpireOldLeads(ctx); err != nil {
			s.logger.Error("lead expiry sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("30 0 * * *", func() {
		if err := s.metrics.CalculateMetrics(ctx); err != nil {
			s.logger.Error("kpi metrics sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("0 6 1 * *", func() {
		if _, err := s.invoicer.GenerateMonthlyInvoices(ctx); err != nil {
			s.logger.Error("monthly invoicing failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("automation schedules started",
		zap.Duration("lead_expiry", s.leadExpiry))
	return nil
}

// Stop halts the scheduler, waiting for running jobs to finish.
func (s *AutomationService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// ExpireOldLeads moves NEW leads past the expiry window to EXPIRED and
// records an event per lead.
func (s *AutomationService) ExpireOldLeads(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.leadExpiry)
	ids, err := s.leadRepo.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.events.LogEvent(ctx, kpidomain.EventLeadExpired, kpisvc.EventContext{LeadID: id})
	}
	if len(ids) > 0 {
		s.logger.Info("expired stale leads",
			zap.Int("count", len(ids)),
			zap.Time("cutoff", cutoff))
	}
	return nil
}

// internal/service/billing/billing_service.go
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kpidomain "arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/domain/lead"
	"arborlead-service/internal/domain/user"
	xerrors "arborlead-service/internal/pkg/errors"
	kpisvc "arborlead-service/internal/service/kpi"
)

// EventRecorder is the slice of the KPI service billing needs.
type EventRecorder interface {
	LogEvent(ctx context.Context, eventType kpidomain.EventType, ec kpisvc.EventContext)
}

// Invoice is one partner's monthly statement.
type Invoice struct {
	PartnerID   int64           `json:"partner_id"`
	PartnerName string          `json:"partner_name"`
	Email       string          `json:"email"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	Period      string          `json:"period"`
}

// InvoiceNotifier delivers the invoice email. Satisfied by the
// notification service.
type InvoiceNotifier interface {
	SendMonthlyInvoice(toEmail, partnerName, amount, period string)
}

// BillingService owns the money side effects of the lead workflow: the
// fixed acceptance fee, the commission on approved quotes and the
// monthly partner invoicing.
type BillingService struct {
	leadRepo lead.Repository
	userRepo user.Repository
	events   EventRecorder
	notifier InvoiceNotifier
	logger   *zap.Logger

	leadFee decimal.Decimal
}

func NewBillingService(
	leadRepo lead.Repository,
	userRepo user.Repository,
	events EventRecorder,
	notifier InvoiceNotifier,
	leadFee decimal.Decimal,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		leadRepo: leadRepo,
		userRepo: userRepo,
		events:   events,
		notifier: notifier,
		leadFee:  leadFee,
		logger:   logger,
	}
}

// ChargeLeadAcceptance books the fixed acceptance fee onto the lead.
// The write is idempotent: an already billed lead is left untouched and
// reported as not charged.
func (s *BillingService) ChargeLeadAcceptance(ctx context.Context, l *lead.Lead, actorID int64) (bool, error) {
	fee := l.LeadFee
	if fee.IsZero() {
		fee = s.leadFee
	}

	charged, err := s.leadRepo.ChargeLeadFee(ctx, l.ID, fee, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to charge acceptance fee: %w", err)
	}
	if !charged {
		s.logger.Info("lead already billed, skipping charge", zap.Int64("lead_id", l.ID))
		return false, nil
	}

	s.events.LogEvent(ctx, kpidomain.EventLeadBillingCharged, kpisvc.EventContext{
		LeadID: l.ID,
		UserID: actorID,
		Data:   map[string]interface{}{"amount": fee.StringFixed(2)},
	})
	s.logger.Info("acceptance fee charged",
		zap.Int64("lead_id", l.ID),
		zap.String("amount", fee.StringFixed(2)))
	return true, nil
}

// DeductCommission books the platform commission after the customer
// approves a quote. The lead must carry the sent quote's total. rate is
// the rate the quote was actually priced with; when zero, the lead's
// configured percentage applies.
func (s *BillingService) DeductCommission(ctx context.Context, l *lead.Lead, quoteID int64, rate decimal.Decimal) (decimal.Decimal, error) {
	if !l.TotalAmount.Valid {
		return decimal.Zero, fmt.Errorf("%w: lead %d has no quote total", xerrors.ErrMissingQuoteTotal, l.ID)
	}

	if rate.IsZero() {
		rate = l.CommissionPercent
	}
	commission := l.TotalAmount.Decimal.Mul(rate).Round(2)

	if err := s.leadRepo.AddCommission(ctx, l.ID, commission); err != nil {
		return decimal.Zero, fmt.Errorf("failed to book commission: %w", err)
	}

	s.events.LogEvent(ctx, kpidomain.EventCommissionDeducted, kpisvc.EventContext{
		LeadID:  l.ID,
		QuoteID: quoteID,
		Data: map[string]interface{}{
			"amount": commission.StringFixed(2),
			"rate":   rate.String(),
		},
	})
	s.logger.Info("commission deducted",
		zap.Int64("lead_id", l.ID),
		zap.String("amount", commission.StringFixed(2)))
	return commission, nil
}

// GenerateMonthlyInvoices collects every partner's outstanding debt
// into an invoice, resets the per-lead debt and snapshots zero on the
// partner record. Called by the monthly sweep.
func (s *BillingService) GenerateMonthlyInvoices(ctx context.Context) ([]Invoice, error) {
	debts, err := s.leadRepo.OutstandingDebtByPartner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect partner debt: %w", err)
	}

	period := time.Now().UTC().Format("2006-01")
	invoices := make([]Invoice, 0, len(debts))
	for partnerID, amount := range debts {
		if !amount.IsPositive() {
			continue
		}
		partner, err := s.userRepo.FindByID(ctx, partnerID)
		if err != nil {
			s.logger.Error("failed to load partner for invoicing",
				zap.Int64("partner_id", partnerID), zap.Error(err))
			continue
		}

		if err := s.leadRepo.ResetDebtForPartner(ctx, partnerID); err != nil {
			s.logger.Error("failed to reset partner debt",
				zap.Int64("partner_id", partnerID), zap.Error(err))
			continue
		}
		if err := s.userRepo.SetDebt(ctx, partnerID, decimal.Zero); err != nil {
			s.logger.Error("failed to clear partner debt snapshot",
				zap.Int64("partner_id", partnerID), zap.Error(err))
		}

		inv := Invoice{
			PartnerID:   partnerID,
			PartnerName: partner.FullName,
			Email:       partner.Email,
			AmountDue:   amount,
			Period:      period,
		}
		invoices = append(invoices, inv)

		s.events.LogEvent(ctx, kpidomain.EventPartnerInvoiced, kpisvc.EventContext{
			UserID: partnerID,
			Data: map[string]interface{}{
				"amount": amount.StringFixed(2),
				"period": period,
			},
		})
		if s.notifier != nil {
			s.notifier.SendMonthlyInvoice(partner.Email, partner.FullName, amount.StringFixed(2), period)
		}
	}

	s.logger.Info("monthly invoices generated",
		zap.String("period", period),
		zap.Int("count", len(invoices)))
	return invoices, nil
}

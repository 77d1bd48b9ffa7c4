// internal/service/workflow/quote_ops.go
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kpidomain "arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/domain/lead"
	"arborlead-service/internal/domain/quote"
	xerrors "arborlead-service/internal/pkg/errors"
	kpisvc "arborlead-service/internal/service/kpi"
)

// CreateOrUpdateQuote prices a quote for an accepted lead. A first call
// creates the draft; later calls replace the calculation and append a
// version. Quotes that already went out are locked.
func (s *WorkflowService) CreateOrUpdateQuote(ctx context.Context, req *quote.CreateQuoteRequest, actor Actor) (*quote.Quote, error) {
	l, err := s.leadRepo.FindByID(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !s.ownsLead(l, actor) {
		return nil, fmt.Errorf("%w: lead is not assigned to this partner", xerrors.ErrForbidden)
	}
	if l.Status != lead.StatusAccepted && l.Status != lead.StatusQuoted {
		return nil, fmt.Errorf("%w: lead %d is %s, quotes require an accepted lead", xerrors.ErrInvalidTransition, l.ID, l.Status)
	}

	calc, commissionRate, discountRate, err := s.price(l, req.Items, req.ApplyDiscount, req.CommissionRate, req.DiscountRate)
	if err != nil {
		return nil, err
	}

	existing, err := s.quoteRepo.FindByLead(ctx, req.LeadID)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if existing != nil {
		if !existing.Status.Editable() {
			return nil, fmt.Errorf("%w: quote %d is %s", xerrors.ErrQuoteLocked, existing.ID, existing.Status)
		}
		existing.Subtotal = calc.Subtotal
		existing.Discount = calc.Discount
		existing.Commission = calc.Commission
		existing.FinalTotal = calc.FinalTotal
		existing.CommissionRate = commissionRate
		existing.DiscountRate = discountRate
		existing.Items = calc.Items
		existing.Versions = append(existing.Versions, quote.NextVersion(existing.Versions, calc, now))

		if err := s.quoteRepo.ReplaceCalculation(ctx, existing); err != nil {
			return nil, err
		}
		s.events.LogEvent(ctx, kpidomain.EventQuoteUpdated, kpisvc.EventContext{
			LeadID:  l.ID,
			UserID:  actor.ID,
			QuoteID: existing.ID,
			Data:    map[string]interface{}{"version": len(existing.Versions)},
		})
		s.logger.Info("quote updated",
			zap.Int64("quote_id", existing.ID),
			zap.Int("version", len(existing.Versions)))
		return existing, nil
	}

	q := &quote.Quote{
		LeadID:         l.ID,
		Reference:      generateQuoteReference(),
		Status:         quote.StatusDraft,
		Subtotal:       calc.Subtotal,
		Discount:       calc.Discount,
		Commission:     calc.Commission,
		FinalTotal:     calc.FinalTotal,
		CommissionRate: commissionRate,
		DiscountRate:   discountRate,
		Items:          calc.Items,
	}
	q.Versions = []quote.Version{quote.NextVersion(nil, calc, now)}

	if err := s.quoteRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	s.events.LogEvent(ctx, kpidomain.EventQuoteCreated, kpisvc.EventContext{
		LeadID:  l.ID,
		UserID:  actor.ID,
		QuoteID: q.ID,
	})
	s.logger.Info("quote created",
		zap.Int64("quote_id", q.ID),
		zap.Int64("lead_id", l.ID),
		zap.String("reference", q.Reference))
	return q, nil
}

// price resolves rates, parses line inputs and runs the calculator.
func (s *WorkflowService) price(l *lead.Lead, items []quote.ItemRequest, applyDiscount bool, commissionOverride, discountOverride string) (*quote.Calculation, decimal.Decimal, decimal.Decimal, error) {
	commissionRate := l.CommissionPercent
	if commissionRate.IsZero() {
		commissionRate = s.defaultCommission
	}
	if commissionOverride != "" {
		parsed, err := decimal.NewFromString(commissionOverride)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: bad commission rate %q", xerrors.ErrInvalidRate, commissionOverride)
		}
		commissionRate = parsed
	}
	discountRate := decimal.Zero
	if discountOverride != "" {
		parsed, err := decimal.NewFromString(discountOverride)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: bad discount rate %q", xerrors.ErrInvalidRate, discountOverride)
		}
		discountRate = parsed
	}

	lines := make([]quote.LineInput, 0, len(items))
	for _, item := range items {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: bad unit price %q", xerrors.ErrInvalidLineItem, item.UnitPrice)
		}
		lines = append(lines, quote.LineInput{
			TreeSpecies:     quote.TreeSpecies(item.TreeSpecies),
			OperationType:   quote.OperationType(item.OperationType),
			CustomOperation: item.CustomOperation,
			Quantity:        item.Quantity,
			UnitPrice:       price,
		})
	}

	calculator, err := quote.NewCalculator(commissionRate, discountRate)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}
	calc, err := calculator.Calculate(lines, applyDiscount)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}
	return calc, commissionRate, discountRate, nil
}

func (s *WorkflowService) GetQuote(ctx context.Context, id int64, actor Actor) (*quote.Quote, error) {
	q, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		l, err := s.leadRepo.FindByID(ctx, q.LeadID)
		if err != nil {
			return nil, err
		}
		if !s.ownsLead(l, actor) {
			return nil, fmt.Errorf("%w: quote belongs to another partner", xerrors.ErrForbidden)
		}
	}
	return q, nil
}

func (s *WorkflowService) GetQuoteForLead(ctx context.Context, leadID int64, actor Actor) (*quote.Quote, error) {
	q, err := s.quoteRepo.FindByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return s.GetQuote(ctx, q.ID, actor)
}

// SendQuote moves the quote DRAFT -> SENT and the lead ACCEPTED ->
// QUOTED, mirrors the total onto the lead and emails the offert to the
// customer.
func (s *WorkflowService) SendQuote(ctx context.Context, quoteID int64, actor Actor) (*quote.Quote, error) {
	q, err := s.quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	l, err := s.leadRepo.FindByID(ctx, q.LeadID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !s.ownsLead(l, actor) {
		return nil, fmt.Errorf("%w: quote belongs to another partner", xerrors.ErrForbidden)
	}
	if q.Status != quote.StatusDraft {
		return nil, fmt.Errorf("%w: quote %d is %s", xerrors.ErrQuoteLocked, q.ID, q.Status)
	}
	if err := lead.Authorize(l.Status, lead.StatusQuoted, actor.Role, s.ownsLead(l, actor)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.quoteRepo.UpdateStatus(ctx, q.ID, quote.StatusDraft, quote.StatusSent, now); err != nil {
		return nil, err
	}
	if err := s.leadRepo.UpdateStatus(ctx, l.ID, l.Status, lead.StatusQuoted); err != nil {
		return nil, err
	}
	if err := s.leadRepo.SetTotalAmount(ctx, l.ID, q.FinalTotal); err != nil {
		s.logger.Error("failed to mirror quote total onto lead",
			zap.Int64("lead_id", l.ID), zap.Error(err))
	}

	s.events.LogEvent(ctx, kpidomain.EventQuoteSent, kpisvc.EventContext{
		LeadID:  l.ID,
		UserID:  actor.ID,
		QuoteID: q.ID,
		Data:    map[string]interface{}{"final_total": q.FinalTotal.StringFixed(2)},
	})
	s.logStatusChanged(ctx, l.ID, actor.ID, l.Status, lead.StatusQuoted)

	if s.notifier != nil {
		s.notifier.SendQuoteToCustomer(l, q)
	}
	s.publish("quote_sent", l.ID, 0)
	s.logger.Info("quote sent",
		zap.Int64("quote_id", q.ID),
		zap.Int64("lead_id", l.ID),
		zap.String("final_total", q.FinalTotal.StringFixed(2)))
	return s.quoteRepo.FindByID(ctx, quoteID)
}

// RespondToQuote records the customer's decision on a sent quote,
// addressed by the public reference. Approval books the commission.
func (s *WorkflowService) RespondToQuote(ctx context.Context, reference string, approve bool) (*quote.Quote, error) {
	q, err := s.quoteRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if q.Status != quote.StatusSent {
		return nil, fmt.Errorf("%w: quote %s is %s, only sent quotes take a response", xerrors.ErrInvalidTransition, reference, q.Status)
	}
	l, err := s.leadRepo.FindByID(ctx, q.LeadID)
	if err != nil {
		return nil, err
	}

	quoteTarget := quote.StatusDeclined
	eventType := kpidomain.EventQuoteDeclined
	if approve {
		quoteTarget = quote.StatusApproved
		eventType = kpidomain.EventQuoteApproved
	}
	leadTarget := lead.CustomerDecision(approve)

	now := time.Now().UTC()
	if err := s.quoteRepo.UpdateStatus(ctx, q.ID, quote.StatusSent, quoteTarget, now); err != nil {
		return nil, err
	}
	if err := s.leadRepo.UpdateStatus(ctx, l.ID, l.Status, leadTarget); err != nil {
		// The quote decision landed; the lead mirror failing is a
		// consistency problem worth surfacing loudly.
		s.logger.Error("quote decision recorded but lead mirror failed",
			zap.Int64("lead_id", l.ID),
			zap.Int64("quote_id", q.ID),
			zap.Error(err))
		return nil, err
	}

	if approve {
		fresh, err := s.leadRepo.FindByID(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		// The quote may have been priced with an overridden rate; the
		// booked commission must follow it.
		if _, err := s.billing.DeductCommission(ctx, fresh, q.ID, q.CommissionRate); err != nil {
			s.logger.Error("failed to book commission on approval",
				zap.Int64("lead_id", l.ID),
				zap.Int64("quote_id", q.ID),
				zap.Error(err))
		}
	}

	s.events.LogEvent(ctx, eventType, kpisvc.EventContext{
		LeadID:  l.ID,
		QuoteID: q.ID,
	})
	s.logStatusChanged(ctx, l.ID, 0, l.Status, leadTarget)

	if s.notifier != nil {
		s.notifier.SendDecisionConfirmation(l, q, approve)
	}
	if l.AssignedPartnerID.Valid {
		s.publish(string(eventType), l.ID, l.AssignedPartnerID.Int64)
	}
	s.logger.Info("customer responded to quote",
		zap.Int64("quote_id", q.ID),
		zap.Bool("approved", approve))
	return s.quoteRepo.FindByID(ctx, q.ID)
}

// CompleteLead marks an approved job done. Admin or the owning partner.
func (s *WorkflowService) CompleteLead(ctx context.Context, leadID int64, actor Actor) (*lead.Lead, error) {
	return s.transition(ctx, leadID, lead.StatusCompleted, actor)
}

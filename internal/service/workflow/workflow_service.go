// internal/service/workflow/workflow_service.go
package workflow

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kpidomain "arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/domain/lead"
	"arborlead-service/internal/domain/quote"
	"arborlead-service/internal/domain/user"
	xerrors "arborlead-service/internal/pkg/errors"
	kpisvc "arborlead-service/internal/service/kpi"
)

// Actor identifies who is driving a workflow operation.
type Actor struct {
	ID   int64
	Role user.Role
}

func (a Actor) IsAdmin() bool { return a.Role == user.RoleAdmin }

// Biller is the slice of the billing service the workflow drives.
type Biller interface {
	ChargeLeadAcceptance(ctx context.Context, l *lead.Lead, actorID int64) (bool, error)
	DeductCommission(ctx context.Context, l *lead.Lead, quoteID int64, rate decimal.Decimal) (decimal.Decimal, error)
}

// EventRecorder records analytics events, best-effort.
type EventRecorder interface {
	LogEvent(ctx context.Context, eventType kpidomain.EventType, ec kpisvc.EventContext)
}

// Notifier delivers customer-facing emails, fire-and-forget.
type Notifier interface {
	SendQuoteToCustomer(l *lead.Lead, q *quote.Quote)
	SendDecisionConfirmation(l *lead.Lead, q *quote.Quote, approved bool)
}

// Publisher pushes realtime updates to connected clients.
type Publisher interface {
	NotifyUser(userID int64, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// WorkflowService is the authority over the lead and quote state
// machines. Every status write funnels through it: it checks the
// transition table and role policy, performs the guarded write, and
// only then triggers billing, events and notifications.
type WorkflowService struct {
	leadRepo  lead.Repository
	quoteRepo quote.Repository
	userRepo  user.Repository
	billing   Biller
	events    EventRecorder
	notifier  Notifier
	publisher Publisher
	logger    *zap.Logger

	leadFee           decimal.Decimal
	defaultCommission decimal.Decimal
	leadExpiry        time.Duration
}

func NewWorkflowService(
	leadRepo lead.Repository,
	quoteRepo quote.Repository,
	userRepo user.Repository,
	billing Biller,
	events EventRecorder,
	notifier Notifier,
	publisher Publisher,
	leadFee decimal.Decimal,
	defaultCommission decimal.Decimal,
	leadExpiry time.Duration,
	logger *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		leadRepo:          leadRepo,
		quoteRepo:         quoteRepo,
		userRepo:          userRepo,
		billing:           billing,
		events:            events,
		notifier:          notifier,
		publisher:         publisher,
		leadFee:           leadFee,
		defaultCommission: defaultCommission,
		leadExpiry:        leadExpiry,
		logger:            logger,
	}
}

// CreateLead registers an incoming customer request as a NEW lead.
func (s *WorkflowService) CreateLead(ctx context.Context, req *lead.CreateLeadRequest, actorID int64) (*lead.Lead, error) {
	l := &lead.Lead{
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     req.CustomerPhone,
		Address:           req.Address,
		City:              req.City,
		PostalCode:        req.PostalCode,
		Region:            req.Region,
		Summary:           req.Summary,
		Status:            lead.StatusNew,
		LeadFee:           s.leadFee,
		CommissionPercent: s.defaultCommission,
	}
	if req.Details != "" {
		l.Details = sql.NullString{String: req.Details, Valid: true}
	}
	if s.leadExpiry > 0 {
		l.ExpiresAt = sql.NullTime{Time: time.Now().UTC().Add(s.leadExpiry), Valid: true}
	}

	if err := s.leadRepo.Create(ctx, l); err != nil {
		return nil, err
	}

	s.events.LogEvent(ctx, kpidomain.EventLeadCreated, kpisvc.EventContext{
		LeadID: l.ID,
		UserID: actorID,
		Data:   map[string]interface{}{"region": l.Region},
	})
	s.publish("lead_created", l.ID, 0)
	s.logger.Info("lead created", zap.Int64("lead_id", l.ID), zap.String("region", l.Region))
	return l, nil
}

func (s *WorkflowService) GetLead(ctx context.Context, id int64) (*lead.Lead, error) {
	return s.leadRepo.FindByID(ctx, id)
}

func (s *WorkflowService) ListLeads(ctx context.Context, f lead.ListFilters) ([]lead.Lead, error) {
	if f.Status != "" {
		st, err := lead.ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		f.Status = string(st)
	}
	return s.leadRepo.List(ctx, f)
}

// UpdateLead edits contact and site fields. Status never moves here.
func (s *WorkflowService) UpdateLead(ctx context.Context, id int64, req *lead.UpdateLeadRequest) (*lead.Lead, error) {
	l, err := s.leadRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CustomerName != nil {
		l.CustomerName = *req.CustomerName
	}
	if req.CustomerEmail != nil {
		l.CustomerEmail = *req.CustomerEmail
	}
	if req.CustomerPhone != nil {
		l.CustomerPhone = *req.CustomerPhone
	}
	if req.Address != nil {
		l.Address = *req.Address
	}
	if req.City != nil {
		l.City = *req.City
	}
	if req.PostalCode != nil {
		l.PostalCode = *req.PostalCode
	}
	if req.Region != nil {
		l.Region = *req.Region
	}
	if req.Summary != nil {
		l.Summary = *req.Summary
	}
	if req.Details != nil {
		l.Details = sql.NullString{String: *req.Details, Valid: *req.Details != ""}
	}

	if err := s.leadRepo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *WorkflowService) DeleteLead(ctx context.Context, id int64) error {
	return s.leadRepo.Delete(ctx, id)
}

// AssignLead hands a lead to a partner. Allowed from NEW and, for
// re-assignment after a rejection, from REJECTED.
func (s *WorkflowService) AssignLead(ctx context.Context, leadID, partnerID int64, actor Actor) (*lead.Lead, error) {
	l, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	partner, err := s.userRepo.FindPartner(ctx, partnerID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d is not an active partner", xerrors.ErrInvalidInput, partnerID)
		}
		return nil, err
	}
	if !partner.ServesRegion(l.Region) {
		s.logger.Warn("assigning lead outside partner region",
			zap.Int64("lead_id", leadID),
			zap.Int64("partner_id", partnerID),
			zap.String("region", l.Region))
	}

	if !actor.IsAdmin() && !lead.CanTransition(l.Status, lead.StatusAssigned) {
		return nil, fmt.Errorf("%w: %s -> %s", xerrors.ErrInvalidTransition, l.Status, lead.StatusAssigned)
	}
	if actor.IsAdmin() && l.Status.Terminal() {
		// Even admins assign only from live statuses; terminal leads
		// need a recall first.
		return nil, fmt.Errorf("%w: %s -> %s", xerrors.ErrInvalidTransition, l.Status, lead.StatusAssigned)
	}

	if err := s.leadRepo.AssignPartner(ctx, leadID, l.Status, partnerID); err != nil {
		return nil, err
	}

	s.events.LogEvent(ctx, kpidomain.EventLeadAssigned, kpisvc.EventContext{
		LeadID: leadID,
		UserID: actor.ID,
		Data:   map[string]interface{}{"partner_id": partnerID},
	})
	s.logStatusChanged(ctx, leadID, actor.ID, l.Status, lead.StatusAssigned)
	s.publish("lead_assigned", leadID, partnerID)
	s.logger.Info("lead assigned",
		zap.Int64("lead_id", leadID),
		zap.Int64("partner_id", partnerID))
	return s.leadRepo.FindByID(ctx, leadID)
}

// AcceptLead is the partner accepting an assigned lead. The acceptance
// fee is charged only after the status write lands; the charge itself
// is idempotent.
func (s *WorkflowService) AcceptLead(ctx context.Context, leadID int64, actor Actor) (*lead.Lead, error) {
	l, err := s.transition(ctx, leadID, lead.StatusAccepted, actor)
	if err != nil {
		return nil, err
	}

	if _, err := s.billing.ChargeLeadAcceptance(ctx, l, actor.ID); err != nil {
		// The transition already landed. Billing failures surface to
		// the caller but do not roll the status back.
		return l, err
	}

	s.events.LogEvent(ctx, kpidomain.EventLeadAccepted, kpisvc.EventContext{
		LeadID: leadID,
		UserID: actor.ID,
	})
	return s.leadRepo.FindByID(ctx, leadID)
}

// RejectLead is the partner declining an assigned lead. No charge.
func (s *WorkflowService) RejectLead(ctx context.Context, leadID int64, actor Actor) (*lead.Lead, error) {
	l, err := s.transition(ctx, leadID, lead.StatusRejected, actor)
	if err != nil {
		return nil, err
	}

	s.events.LogEvent(ctx, kpidomain.EventLeadRejected, kpisvc.EventContext{
		LeadID: leadID,
		UserID: actor.ID,
	})
	return l, nil
}

// RecallLead pulls a lead back to an earlier stage: ASSIGNED when a
// partner is attached, otherwise NEW. Refused once the lead is terminal.
func (s *WorkflowService) RecallLead(ctx context.Context, leadID int64, actor Actor) (*lead.Lead, error) {
	l, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !s.ownsLead(l, actor) {
		return nil, fmt.Errorf("%w: lead is not assigned to this partner", xerrors.ErrForbidden)
	}

	target, err := lead.RecallTarget(l)
	if err != nil {
		return nil, err
	}
	if err := s.leadRepo.Recall(ctx, leadID, l.Status, target); err != nil {
		return nil, err
	}

	s.events.LogEvent(ctx, kpidomain.EventLeadRecalled, kpisvc.EventContext{
		LeadID: leadID,
		UserID: actor.ID,
		Data:   map[string]interface{}{"from": string(l.Status), "to": string(target)},
	})
	s.logger.Info("lead recalled",
		zap.Int64("lead_id", leadID),
		zap.String("from", string(l.Status)),
		zap.String("to", string(target)))
	return s.leadRepo.FindByID(ctx, leadID)
}

// ChangeStatus is the generic transition endpoint, used mainly by
// admins for corrections.
func (s *WorkflowService) ChangeStatus(ctx context.Context, leadID int64, targetRaw string, actor Actor) (*lead.Lead, error) {
	target, err := lead.ParseStatus(targetRaw)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, leadID, target, actor)
}

// BillLead is the admin manually charging the acceptance fee, used when
// the automatic charge failed. Only leads that progressed past
// acceptance are billable.
func (s *WorkflowService) BillLead(ctx context.Context, leadID int64, actor Actor) (*lead.Lead, bool, error) {
	l, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, false, err
	}

	switch l.Status {
	case lead.StatusAccepted, lead.StatusQuoted, lead.StatusApproved, lead.StatusCompleted:
	default:
		return nil, false, fmt.Errorf("%w: lead %d is %s", xerrors.ErrNotBillable, leadID, l.Status)
	}

	charged, err := s.billing.ChargeLeadAcceptance(ctx, l, actor.ID)
	if err != nil {
		return nil, false, err
	}
	l, err = s.leadRepo.FindByID(ctx, leadID)
	return l, charged, err
}

// PartnerLeads lists the partner's leads. Leads not yet accepted are
// redacted to previews; customer contact details stay hidden until the
// partner accepts.
func (s *WorkflowService) PartnerLeads(ctx context.Context, partnerID int64, f lead.ListFilters) ([]interface{}, error) {
	if f.Status != "" {
		st, err := lead.ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		f.Status = string(st)
	}
	leads, err := s.leadRepo.ListByPartner(ctx, partnerID, f)
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, 0, len(leads))
	for i := range leads {
		if leads[i].Status == lead.StatusAssigned {
			out = append(out, leads[i].ToPreview())
			continue
		}
		out = append(out, leads[i])
	}
	return out, nil
}

// PartnerLeadDetail returns a single lead for its assigned partner.
// Full detail views on accepted leads are tracked for analytics.
func (s *WorkflowService) PartnerLeadDetail(ctx context.Context, leadID int64, partnerID int64) (interface{}, error) {
	l, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !l.AssignedPartnerID.Valid || l.AssignedPartnerID.Int64 != partnerID {
		return nil, fmt.Errorf("%w: lead is not assigned to this partner", xerrors.ErrForbidden)
	}

	if l.Status == lead.StatusAssigned {
		return l.ToPreview(), nil
	}

	if err := s.leadRepo.MarkViewed(ctx, leadID); err != nil {
		s.logger.Warn("failed to track lead view", zap.Int64("lead_id", leadID), zap.Error(err))
	} else {
		s.events.LogEvent(ctx, kpidomain.EventLeadDetailsViewed, kpisvc.EventContext{
			LeadID: leadID,
			UserID: partnerID,
		})
	}
	return s.leadRepo.FindByID(ctx, leadID)
}

// logStatusChanged emits the delta event that accompanies every status
// write, whichever path performed it.
func (s *WorkflowService) logStatusChanged(ctx context.Context, leadID, actorID int64, from, to lead.Status) {
	s.events.LogEvent(ctx, kpidomain.EventLeadStatusChanged, kpisvc.EventContext{
		LeadID: leadID,
		UserID: actorID,
		Data:   map[string]interface{}{"from": string(from), "to": string(to)},
	})
}

// transition runs one guarded status change end to end.
func (s *WorkflowService) transition(ctx context.Context, leadID int64, target lead.Status, actor Actor) (*lead.Lead, error) {
	l, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := lead.Authorize(l.Status, target, actor.Role, s.ownsLead(l, actor)); err != nil {
		return nil, err
	}
	if err := s.leadRepo.UpdateStatus(ctx, leadID, l.Status, target); err != nil {
		return nil, err
	}

	s.logStatusChanged(ctx, leadID, actor.ID, l.Status, target)
	s.publish("lead_status_changed", leadID, 0)
	s.logger.Info("lead status changed",
		zap.Int64("lead_id", leadID),
		zap.String("from", string(l.Status)),
		zap.String("to", string(target)))

	l.Status = target
	return l, nil
}

func (s *WorkflowService) ownsLead(l *lead.Lead, actor Actor) bool {
	return l.AssignedPartnerID.Valid && l.AssignedPartnerID.Int64 == actor.ID
}

func (s *WorkflowService) publish(event string, leadID, userID int64) {
	if s.publisher == nil {
		return
	}
	payload := map[string]interface{}{"lead_id": leadID}
	if userID != 0 {
		s.publisher.NotifyUser(userID, event, payload)
		return
	}
	s.publisher.Broadcast(event, payload)
}

// generateQuoteReference builds the public reference customers use to
// answer a quote, e.g. QUO-1756368000-a1b2c3d4.
func generateQuoteReference() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("QUO-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("QUO-%d-%s", time.Now().Unix(), hex.EncodeToString(buf))
}

package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kpidomain "arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/domain/lead"
	"arborlead-service/internal/domain/quote"
	"arborlead-service/internal/domain/user"
	xerrors "arborlead-service/internal/pkg/errors"
	"arborlead-service/internal/service/billing"
	kpisvc "arborlead-service/internal/service/kpi"
)

// ---- in-memory fakes ----

type fakeLeadRepo struct {
	mu     sync.Mutex
	nextID int64
	leads  map[int64]lead.Lead
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[int64]lead.Lead)}
}

func (r *fakeLeadRepo) Create(_ context.Context, l *lead.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	r.leads[l.ID] = *l
	return nil
}

func (r *fakeLeadRepo) FindByID(_ context.Context, id int64) (*lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := l
	return &out, nil
}

func (r *fakeLeadRepo) List(_ context.Context, f lead.ListFilters) ([]lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lead.Lead
	for _, l := range r.leads {
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		if f.Region != "" && l.Region != f.Region {
			continue
		}
		if f.PartnerID != 0 && (!l.AssignedPartnerID.Valid || l.AssignedPartnerID.Int64 != f.PartnerID) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeLeadRepo) ListByPartner(ctx context.Context, partnerID int64, f lead.ListFilters) ([]lead.Lead, error) {
	f.PartnerID = partnerID
	return r.List(ctx, f)
}

func (r *fakeLeadRepo) Update(_ context.Context, l *lead.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.leads[l.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	stored.CustomerName = l.CustomerName
	stored.CustomerEmail = l.CustomerEmail
	stored.CustomerPhone = l.CustomerPhone
	stored.Address = l.Address
	stored.City = l.City
	stored.PostalCode = l.PostalCode
	stored.Region = l.Region
	stored.Summary = l.Summary
	stored.Details = l.Details
	r.leads[l.ID] = stored
	return nil
}

func (r *fakeLeadRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[id]; !ok {
		return xerrors.ErrNotFound
	}
	delete(r.leads, id)
	return nil
}

func (r *fakeLeadRepo) UpdateStatus(_ context.Context, id int64, from, to lead.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if l.Status != from {
		return xerrors.ErrConcurrentModification
	}
	l.Status = to
	now := time.Now().UTC()
	switch to {
	case lead.StatusAssigned:
		l.AssignedAt.Time, l.AssignedAt.Valid = now, true
	case lead.StatusAccepted:
		l.AcceptedAt.Time, l.AcceptedAt.Valid = now, true
	case lead.StatusQuoted:
		l.QuotedAt.Time, l.QuotedAt.Valid = now, true
	case lead.StatusApproved, lead.StatusDeclined:
		l.CustomerResponseAt.Time, l.CustomerResponseAt.Valid = now, true
	}
	r.leads[id] = l
	return nil
}

func (r *fakeLeadRepo) AssignPartner(_ context.Context, id int64, from lead.Status, partnerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if l.Status != from {
		return xerrors.ErrConcurrentModification
	}
	l.Status = lead.StatusAssigned
	l.AssignedPartnerID.Int64, l.AssignedPartnerID.Valid = partnerID, true
	l.AssignedAt.Time, l.AssignedAt.Valid = time.Now().UTC(), true
	r.leads[id] = l
	return nil
}

func (r *fakeLeadRepo) Recall(_ context.Context, id int64, from, target lead.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if l.Status != from {
		return xerrors.ErrConcurrentModification
	}
	l.Status = target
	if target == lead.StatusNew {
		l.AssignedPartnerID.Valid = false
		l.AssignedAt.Valid = false
	}
	r.leads[id] = l
	return nil
}

func (r *fakeLeadRepo) MarkViewed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	l.ViewedDetails = true
	l.ViewCount++
	r.leads[id] = l
	return nil
}

func (r *fakeLeadRepo) ChargeLeadFee(_ context.Context, id int64, fee decimal.Decimal, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return false, xerrors.ErrNotFound
	}
	if l.Billed {
		return false, nil
	}
	l.Billed = true
	l.BilledAt.Time, l.BilledAt.Valid = at, true
	l.PartnerDebt = l.PartnerDebt.Add(fee)
	r.leads[id] = l
	return true, nil
}

func (r *fakeLeadRepo) AddCommission(_ context.Context, id int64, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	l.PartnerCommission = l.PartnerCommission.Add(amount)
	l.PartnerDebt = l.PartnerDebt.Add(amount)
	r.leads[id] = l
	return nil
}

func (r *fakeLeadRepo) SetTotalAmount(_ context.Context, id int64, total decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	l.TotalAmount.Decimal, l.TotalAmount.Valid = total, true
	r.leads[id] = l
	return nil
}

func (r *fakeLeadRepo) ExpireOlderThan(_ context.Context, cutoff time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, l := range r.leads {
		if l.Status == lead.StatusNew && l.CreatedAt.Before(cutoff) {
			l.Status = lead.StatusExpired
			r.leads[id] = l
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeLeadRepo) OutstandingDebtByPartner(_ context.Context) (map[int64]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	debts := make(map[int64]decimal.Decimal)
	for _, l := range r.leads {
		if l.AssignedPartnerID.Valid && l.PartnerDebt.IsPositive() {
			id := l.AssignedPartnerID.Int64
			debts[id] = debts[id].Add(l.PartnerDebt)
		}
	}
	return debts, nil
}

func (r *fakeLeadRepo) ResetDebtForPartner(_ context.Context, partnerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.leads {
		if l.AssignedPartnerID.Valid && l.AssignedPartnerID.Int64 == partnerID {
			l.PartnerDebt = decimal.Zero
			r.leads[id] = l
		}
	}
	return nil
}

type fakeQuoteRepo struct {
	mu     sync.Mutex
	nextID int64
	quotes map[int64]quote.Quote
}

func newFakeQuoteRepo() *fakeQuoteRepo {
	return &fakeQuoteRepo{quotes: make(map[int64]quote.Quote)}
}

func (r *fakeQuoteRepo) Create(_ context.Context, q *quote.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	q.ID = r.nextID
	q.CreatedAt = time.Now().UTC()
	q.UpdatedAt = q.CreatedAt
	r.quotes[q.ID] = *q
	return nil
}

func (r *fakeQuoteRepo) FindByID(_ context.Context, id int64) (*quote.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := q
	return &out, nil
}

func (r *fakeQuoteRepo) FindByReference(_ context.Context, reference string) (*quote.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quotes {
		if q.Reference == reference {
			out := q
			return &out, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *fakeQuoteRepo) FindByLead(_ context.Context, leadID int64) (*quote.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *quote.Quote
	for id := range r.quotes {
		q := r.quotes[id]
		if q.LeadID != leadID {
			continue
		}
		if newest == nil || q.ID > newest.ID {
			copied := q
			newest = &copied
		}
	}
	if newest == nil {
		return nil, xerrors.ErrNotFound
	}
	return newest, nil
}

func (r *fakeQuoteRepo) ReplaceCalculation(_ context.Context, q *quote.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.quotes[q.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if stored.Status != quote.StatusDraft {
		return xerrors.ErrQuoteLocked
	}
	stored.Subtotal = q.Subtotal
	stored.Discount = q.Discount
	stored.Commission = q.Commission
	stored.FinalTotal = q.FinalTotal
	stored.CommissionRate = q.CommissionRate
	stored.DiscountRate = q.DiscountRate
	stored.Items = q.Items
	stored.Versions = q.Versions
	r.quotes[q.ID] = stored
	return nil
}

func (r *fakeQuoteRepo) UpdateStatus(_ context.Context, id int64, from, to quote.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if q.Status != from {
		return xerrors.ErrConcurrentModification
	}
	q.Status = to
	switch to {
	case quote.StatusSent:
		q.SentAt.Time, q.SentAt.Valid = at, true
	case quote.StatusApproved, quote.StatusDeclined:
		q.CustomerResponseAt.Time, q.CustomerResponseAt.Valid = at, true
	}
	r.quotes[id] = q
	return nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]user.User)}
}

func (r *fakeUserRepo) addPartner(t *testing.T) *user.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u := user.User{
		ID:       r.nextID,
		Email:    fmt.Sprintf("partner%d@example.se", r.nextID),
		FullName: fmt.Sprintf("Partner %d", r.nextID),
		Role:     user.RolePartner,
		IsActive: true,
	}
	r.users[u.ID] = u
	return &u
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := u
	return &out, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *fakeUserRepo) FindPartner(ctx context.Context, id int64) (*user.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != user.RolePartner || !u.IsActive {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) ListPartners(_ context.Context, region string) ([]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.User
	for _, u := range r.users {
		if u.Role == user.RolePartner && u.IsActive && u.ServesRegion(region) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, hashed string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	u.HashedPassword = hashed
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) TopPartners(_ context.Context, _ string, _ int) ([]user.PartnerRanking, error) {
	return nil, nil
}

func (r *fakeUserRepo) SetDebt(_ context.Context, id int64, debt decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	u.Debt = debt
	r.users[id] = u
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []kpidomain.EventType
}

func (f *fakeEvents) LogEvent(_ context.Context, eventType kpidomain.EventType, _ kpisvc.EventContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakeEvents) has(eventType kpidomain.EventType) bool {
	return f.count(eventType) > 0
}

func (f *fakeEvents) count(eventType kpidomain.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu        sync.Mutex
	quotes    int
	decisions int
}

func (f *fakeNotifier) SendQuoteToCustomer(*lead.Lead, *quote.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes++
}

func (f *fakeNotifier) SendDecisionConfirmation(*lead.Lead, *quote.Quote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions++
}

func (f *fakeNotifier) SendMonthlyInvoice(string, string, string, string) {}

// ---- harness ----

type harness struct {
	svc      *WorkflowService
	leads    *fakeLeadRepo
	quotes   *fakeQuoteRepo
	users    *fakeUserRepo
	events   *fakeEvents
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	leads := newFakeLeadRepo()
	quotes := newFakeQuoteRepo()
	users := newFakeUserRepo()
	events := &fakeEvents{}
	notifier := &fakeNotifier{}
	logger := zap.NewNop()

	biller := billing.NewBillingService(
		leads, users, events, notifier,
		decimal.RequireFromString("500.00"), logger,
	)
	svc := NewWorkflowService(
		leads, quotes, users, biller, events, notifier, nil,
		decimal.RequireFromString("500.00"),
		decimal.RequireFromString("0.15"),
		48*time.Hour,
		logger,
	)
	return &harness{svc: svc, leads: leads, quotes: quotes, users: users, events: events, notifier: notifier}
}

var admin = Actor{ID: 1, Role: user.RoleAdmin}

func (h *harness) newLead(t *testing.T) *lead.Lead {
	t.Helper()
	l, err := h.svc.CreateLead(context.Background(), &lead.CreateLeadRequest{
		CustomerName:  "Eva Lindqvist",
		CustomerEmail: "eva@example.se",
		CustomerPhone: "+46701234567",
		Address:       "Storgatan 1",
		City:          "Uppsala",
		PostalCode:    "75310",
		Region:        "Uppsala",
		Summary:       "Stor ek nära huset",
	}, admin.ID)
	require.NoError(t, err)
	return l
}

// ---- tests ----

func TestCreateLeadDefaults(t *testing.T) {
	h := newHarness(t)
	l := h.newLead(t)

	assert.Equal(t, lead.StatusNew, l.Status)
	assert.True(t, l.LeadFee.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, l.CommissionPercent.Equal(decimal.RequireFromString("0.15")))
	assert.True(t, l.ExpiresAt.Valid)
	assert.True(t, h.events.has(kpidomain.EventLeadCreated))
}

func TestAssignAcceptChargesFee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	assigned, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusAssigned, assigned.Status)
	assert.True(t, assigned.AssignedAt.Valid)
	// Assignment emits the delta event alongside lead_assigned.
	assert.Equal(t, 1, h.events.count(kpidomain.EventLeadStatusChanged))

	accepted, err := h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusAccepted, accepted.Status)
	assert.True(t, accepted.Billed)
	assert.True(t, accepted.PartnerDebt.Equal(decimal.RequireFromString("500.00")),
		"debt %s", accepted.PartnerDebt)
	assert.True(t, h.events.has(kpidomain.EventLeadAccepted))
	assert.True(t, h.events.has(kpidomain.EventLeadBillingCharged))
}

func TestBillingIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)

	// A manual admin bill after the automatic charge must not double up.
	billed, charged, err := h.svc.BillLead(ctx, l.ID, admin)
	require.NoError(t, err)
	assert.False(t, charged)
	assert.True(t, billed.PartnerDebt.Equal(decimal.RequireFromString("500.00")),
		"debt %s", billed.PartnerDebt)
}

func TestBillLeadRequiresBillableStatus(t *testing.T) {
	h := newHarness(t)
	l := h.newLead(t)

	_, _, err := h.svc.BillLead(context.Background(), l.ID, admin)
	assert.ErrorIs(t, err, xerrors.ErrNotBillable)
}

func TestPartnerCannotSkipAcceptance(t *testing.T) {
	h := newHarness(t)
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	// Lead is NEW and unassigned: the partner owns nothing here.
	_, err := h.svc.AcceptLead(context.Background(), l.ID, partner)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}

func TestRejectAndReassign(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	first := h.users.addPartner(t)
	second := h.users.addPartner(t)

	_, err := h.svc.AssignLead(ctx, l.ID, first.ID, admin)
	require.NoError(t, err)

	rejected, err := h.svc.RejectLead(ctx, l.ID, Actor{ID: first.ID, Role: user.RolePartner})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusRejected, rejected.Status)
	assert.False(t, rejected.Billed)

	// REJECTED -> ASSIGNED is a legal re-assignment.
	reassigned, err := h.svc.AssignLead(ctx, l.ID, second.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusAssigned, reassigned.Status)
	assert.Equal(t, second.ID, reassigned.AssignedPartnerID.Int64)
}

func TestQuoteLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)

	q, err := h.svc.CreateOrUpdateQuote(ctx, &quote.CreateQuoteRequest{
		LeadID: l.ID,
		Items: []quote.ItemRequest{
			{TreeSpecies: string(quote.SpeciesOak), OperationType: string(quote.OpFelling), Quantity: 2, UnitPrice: "1000"},
		},
	}, partner)
	require.NoError(t, err)
	assert.Equal(t, quote.StatusDraft, q.Status)
	assert.NotEmpty(t, q.Reference)
	require.Len(t, q.Versions, 1)
	assert.True(t, q.FinalTotal.Equal(decimal.RequireFromString("2300.00")),
		"final total %s", q.FinalTotal)

	// Re-pricing the draft appends a version.
	q2, err := h.svc.CreateOrUpdateQuote(ctx, &quote.CreateQuoteRequest{
		LeadID: l.ID,
		Items: []quote.ItemRequest{
			{TreeSpecies: string(quote.SpeciesOak), OperationType: string(quote.OpFelling), Quantity: 1, UnitPrice: "1500"},
		},
	}, partner)
	require.NoError(t, err)
	assert.Equal(t, q.ID, q2.ID)
	require.Len(t, q2.Versions, 2)
	assert.Equal(t, 2, q2.Versions[1].Version)
	assert.True(t, q2.FinalTotal.Equal(decimal.RequireFromString("1725.00")),
		"final total %s", q2.FinalTotal)

	deltaEvents := h.events.count(kpidomain.EventLeadStatusChanged)
	sent, err := h.svc.SendQuote(ctx, q.ID, partner)
	require.NoError(t, err)
	assert.Equal(t, quote.StatusSent, sent.Status)
	assert.True(t, sent.SentAt.Valid)
	assert.Equal(t, 1, h.notifier.quotes)
	// Sending moves the lead to quoted and logs the delta event too.
	assert.Equal(t, deltaEvents+1, h.events.count(kpidomain.EventLeadStatusChanged))

	fresh, err := h.svc.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusQuoted, fresh.Status)
	assert.True(t, fresh.TotalAmount.Valid)
	assert.True(t, fresh.TotalAmount.Decimal.Equal(decimal.RequireFromString("1725.00")))

	// Sent quotes are locked.
	_, err = h.svc.CreateOrUpdateQuote(ctx, &quote.CreateQuoteRequest{
		LeadID: l.ID,
		Items: []quote.ItemRequest{
			{TreeSpecies: string(quote.SpeciesOak), OperationType: string(quote.OpFelling), Quantity: 1, UnitPrice: "99"},
		},
	}, partner)
	assert.ErrorIs(t, err, xerrors.ErrQuoteLocked)
}

func TestCustomerApprovalBooksCommission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)
	q, err := h.svc.CreateOrUpdateQuote(ctx, &quote.CreateQuoteRequest{
		LeadID: l.ID,
		Items: []quote.ItemRequest{
			{TreeSpecies: string(quote.SpeciesBirch), OperationType: string(quote.OpCrownReduction), Quantity: 4, UnitPrice: "250"},
		},
	}, partner)
	require.NoError(t, err)
	_, err = h.svc.SendQuote(ctx, q.ID, partner)
	require.NoError(t, err)

	deltaEvents := h.events.count(kpidomain.EventLeadStatusChanged)
	approved, err := h.svc.RespondToQuote(ctx, q.Reference, true)
	require.NoError(t, err)
	assert.Equal(t, quote.StatusApproved, approved.Status)
	assert.True(t, approved.CustomerResponseAt.Valid)
	assert.Equal(t, deltaEvents+1, h.events.count(kpidomain.EventLeadStatusChanged))

	fresh, err := h.svc.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusApproved, fresh.Status)

	// 4 x 250 = 1000, commission 150, total 1150; lead commission is
	// 15% of the mirrored total.
	wantCommission := decimal.RequireFromString("172.50")
	assert.True(t, fresh.PartnerCommission.Equal(wantCommission),
		"commission %s", fresh.PartnerCommission)
	// 500 fee + 172.50 commission
	assert.True(t, fresh.PartnerDebt.Equal(decimal.RequireFromString("672.50")),
		"debt %s", fresh.PartnerDebt)
	assert.True(t, h.events.has(kpidomain.EventQuoteApproved))
	assert.True(t, h.events.has(kpidomain.EventCommissionDeducted))
	assert.Equal(t, 1, h.notifier.decisions)
}

func TestApprovalUsesQuoteRateOverride(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)

	// Priced at 20% even though the lead carries the default 15%.
	q, err := h.svc.CreateOrUpdateQuote(ctx, &quote.CreateQuoteRequest{
		LeadID:         l.ID,
		CommissionRate: "0.20",
		Items: []quote.ItemRequest{
			{TreeSpecies: string(quote.SpeciesBirch), OperationType: string(quote.OpCrownReduction), Quantity: 4, UnitPrice: "250"},
		},
	}, partner)
	require.NoError(t, err)
	assert.True(t, q.FinalTotal.Equal(decimal.RequireFromString("1200.00")),
		"final total %s", q.FinalTotal)

	_, err = h.svc.SendQuote(ctx, q.ID, partner)
	require.NoError(t, err)
	_, err = h.svc.RespondToQuote(ctx, q.Reference, true)
	require.NoError(t, err)

	fresh, err := h.svc.GetLead(ctx, l.ID)
	require.NoError(t, err)
	// Booked at the quote's rate: 1200 x 0.20.
	assert.True(t, fresh.PartnerCommission.Equal(decimal.RequireFromString("240.00")),
		"commission %s", fresh.PartnerCommission)
	assert.True(t, fresh.PartnerDebt.Equal(decimal.RequireFromString("740.00")),
		"debt %s", fresh.PartnerDebt)
}

func TestCustomerDecline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)
	q, err := h.svc.CreateOrUpdateQuote(ctx, &quote.CreateQuoteRequest{
		LeadID: l.ID,
		Items: []quote.ItemRequest{
			{TreeSpecies: string(quote.SpeciesPine), OperationType: string(quote.OpFelling), Quantity: 1, UnitPrice: "800"},
		},
	}, partner)
	require.NoError(t, err)
	_, err = h.svc.SendQuote(ctx, q.ID, partner)
	require.NoError(t, err)

	declined, err := h.svc.RespondToQuote(ctx, q.Reference, false)
	require.NoError(t, err)
	assert.Equal(t, quote.StatusDeclined, declined.Status)

	fresh, err := h.svc.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusDeclined, fresh.Status)
	assert.True(t, fresh.PartnerCommission.IsZero())

	// Double responses are refused.
	_, err = h.svc.RespondToQuote(ctx, q.Reference, true)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestRecall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)

	// Recall from ACCEPTED lands back on ASSIGNED since a partner holds it.
	recalled, err := h.svc.RecallLead(ctx, l.ID, partner)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusAssigned, recalled.Status)
	assert.True(t, recalled.AssignedPartnerID.Valid)
	assert.True(t, h.events.has(kpidomain.EventLeadRecalled))
}

func TestRecallRefusedFromTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)

	_, err := h.svc.ChangeStatus(ctx, l.ID, "expired", admin)
	require.NoError(t, err)

	_, err = h.svc.RecallLead(ctx, l.ID, admin)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestChangeStatusAcceptsLegacyVocabulary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)

	// "closed" is the retired alias for declined.
	changed, err := h.svc.ChangeStatus(ctx, l.ID, "closed", admin)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusDeclined, changed.Status)
}

func TestPartnerLeadRedaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)

	// Before acceptance the partner sees a redacted preview.
	detail, err := h.svc.PartnerLeadDetail(ctx, l.ID, p.ID)
	require.NoError(t, err)
	preview, ok := detail.(lead.Preview)
	require.True(t, ok, "expected a preview, got %T", detail)
	assert.Equal(t, "Uppsala", preview.City)

	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)

	// After acceptance the full lead comes back and the view is tracked.
	detail, err = h.svc.PartnerLeadDetail(ctx, l.ID, p.ID)
	require.NoError(t, err)
	full, ok := detail.(*lead.Lead)
	require.True(t, ok, "expected a full lead, got %T", detail)
	assert.Equal(t, "eva@example.se", full.CustomerEmail)
	assert.True(t, full.ViewedDetails)
	assert.Equal(t, 1, full.ViewCount)
	assert.True(t, h.events.has(kpidomain.EventLeadDetailsViewed))
}

func TestPartnerLeadDetailForeignLead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	owner := h.users.addPartner(t)
	other := h.users.addPartner(t)

	_, err := h.svc.AssignLead(ctx, l.ID, owner.ID, admin)
	require.NoError(t, err)

	_, err = h.svc.PartnerLeadDetail(ctx, l.ID, other.ID)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}

func TestConcurrentStatusWriteDetected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)

	// Simulate a racing writer moving the lead between the read and the
	// guarded write.
	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	require.NoError(t, h.leads.UpdateStatus(ctx, l.ID, lead.StatusAssigned, lead.StatusRejected))

	err = h.leads.UpdateStatus(ctx, l.ID, lead.StatusAssigned, lead.StatusAccepted)
	assert.ErrorIs(t, err, xerrors.ErrConcurrentModification)
}

func TestCompleteLead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.newLead(t)
	p := h.users.addPartner(t)
	partner := Actor{ID: p.ID, Role: user.RolePartner}

	_, err := h.svc.AssignLead(ctx, l.ID, p.ID, admin)
	require.NoError(t, err)
	_, err = h.svc.AcceptLead(ctx, l.ID, partner)
	require.NoError(t, err)
	q, err := h.svc.CreateOrUpdateQuote(ctx, &quote.CreateQuoteRequest{
		LeadID: l.ID,
		Items: []quote.ItemRequest{
			{TreeSpecies: string(quote.SpeciesAsh), OperationType: string(quote.OpSectionFelling), Quantity: 1, UnitPrice: "4000"},
		},
	}, partner)
	require.NoError(t, err)
	_, err = h.svc.SendQuote(ctx, q.ID, partner)
	require.NoError(t, err)
	_, err = h.svc.RespondToQuote(ctx, q.Reference, true)
	require.NoError(t, err)

	done, err := h.svc.CompleteLead(ctx, l.ID, partner)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusCompleted, done.Status)

	// Completed is terminal.
	_, err = h.svc.RecallLead(ctx, l.ID, partner)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

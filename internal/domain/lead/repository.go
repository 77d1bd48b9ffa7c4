// internal/domain/lead/repository.go
package lead

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository is the persistence contract for leads. Status writes use
// compare-and-swap on the expected current status: implementations must
// return xerrors.ErrConcurrentModification when the row moved under the
// caller, and xerrors.ErrNotFound when the row does not exist.
type Repository interface {
	Create(ctx context.Context, l *Lead) error
	FindByID(ctx context.Context, id int64) (*Lead, error)
	List(ctx context.Context, f ListFilters) ([]Lead, error)
	ListByPartner(ctx context.Context, partnerID int64, f ListFilters) ([]Lead, error)
	Update(ctx context.Context, l *Lead) error
	Delete(ctx context.Context, id int64) error

	// UpdateStatus performs the CAS write `status = to WHERE id AND
	// status = from` and stamps the timestamp column matching the target
	// status (accepted_at, quoted_at, customer_response_at).
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
	// AssignPartner atomically sets the partner, moves the lead to
	// ASSIGNED and stamps assigned_at, guarded on the expected status.
	AssignPartner(ctx context.Context, id int64, from Status, partnerID int64) error
	// Recall moves the lead back to target and, when target is NEW,
	// clears the assigned partner.
	Recall(ctx context.Context, id int64, from, target Status) error

	// MarkViewed flips viewed_details and bumps view_count for the
	// owning partner's first and subsequent detail views.
	MarkViewed(ctx context.Context, id int64) error

	// ChargeLeadFee is the idempotent acceptance charge: it adds fee to
	// partner_debt and sets billed/billed_at, guarded on billed = false.
	// Returns false without error when the lead was already billed.
	ChargeLeadFee(ctx context.Context, id int64, fee decimal.Decimal, at time.Time) (bool, error)
	// AddCommission accumulates a commission amount onto both
	// partner_commission and partner_debt.
	AddCommission(ctx context.Context, id int64, amount decimal.Decimal) error
	// SetTotalAmount mirrors the latest sent quote total onto the lead.
	SetTotalAmount(ctx context.Context, id int64, total decimal.Decimal) error

	// ExpireOlderThan moves NEW leads created before cutoff to EXPIRED
	// and returns the ids it touched.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error)

	// OutstandingDebtByPartner sums unsettled partner_debt per partner.
	OutstandingDebtByPartner(ctx context.Context) (map[int64]decimal.Decimal, error)
	// ResetDebtForPartner zeroes partner_debt on the partner's billed
	// leads after an invoice is issued.
	ResetDebtForPartner(ctx context.Context, partnerID int64) error
}

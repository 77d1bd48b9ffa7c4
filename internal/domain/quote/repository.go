// internal/domain/quote/repository.go
package quote

import (
	"context"
	"time"
)

// Repository persists quotes together with their items and version
// history. Status writes are CAS-guarded like lead status writes.
type Repository interface {
	// Create stores the quote, its items and its first version in one
	// transaction.
	Create(ctx context.Context, q *Quote) error
	FindByID(ctx context.Context, id int64) (*Quote, error)
	FindByReference(ctx context.Context, reference string) (*Quote, error)
	// FindByLead returns the lead's quote, newest first when several
	// drafts accumulated historically.
	FindByLead(ctx context.Context, leadID int64) (*Quote, error)

	// ReplaceCalculation swaps the quote's items and totals and appends
	// the new version, guarded on status = draft. Returns
	// xerrors.ErrQuoteLocked when the quote already left draft.
	ReplaceCalculation(ctx context.Context, q *Quote) error

	// UpdateStatus performs the CAS status write and stamps sent_at or
	// customer_response_at to match the target status.
	UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) error
}

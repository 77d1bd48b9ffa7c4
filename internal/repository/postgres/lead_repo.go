// internal/repository/postgres/lead_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arborlead-service/internal/domain/lead"
	xerrors "arborlead-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LeadRepository struct {
	db *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: db}
}

const leadColumns = `
	id, customer_name, customer_email, customer_phone,
	address, city, postal_code, region, summary, details,
	status, assigned_partner_id,
	assigned_at, accepted_at, quoted_at, customer_response_at, expires_at,
	lead_fee, commission_percent, billed, billed_at,
	partner_debt, partner_commission, total_amount,
	viewed_details, view_count, created_at, updated_at
`

func scanLead(row pgx.Row) (*lead.Lead, error) {
	var l lead.Lead
	err := row.Scan(
		&l.ID, &l.CustomerName, &l.CustomerEmail, &l.CustomerPhone,
		&l.Address, &l.City, &l.PostalCode, &l.Region, &l.Summary, &l.Details,
		&l.Status, &l.AssignedPartnerID,
		&l.AssignedAt, &l.AcceptedAt, &l.QuotedAt, &l.CustomerResponseAt, &l.ExpiresAt,
		&l.LeadFee, &l.CommissionPercent, &l.Billed, &l.BilledAt,
		&l.PartnerDebt, &l.PartnerCommission, &l.TotalAmount,
		&l.ViewedDetails, &l.ViewCount, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}
	return &l, nil
}

func (r *LeadRepository) Create(ctx context.Context, l *lead.Lead) error {
	query := `
		INSERT INTO leads (
			customer_name, customer_email, customer_phone,
			address, city, postal_code, region, summary, details,
			status, lead_fee, commission_percent, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(
		ctx, query,
		l.CustomerName, l.CustomerEmail, l.CustomerPhone,
		l.Address, l.City, l.PostalCode, l.Region, l.Summary, l.Details,
		l.Status, l.LeadFee, l.CommissionPercent, l.ExpiresAt,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func (r *LeadRepository) FindByID(ctx context.Context, id int64) (*lead.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return scanLead(r.db.QueryRow(ctx, query, id))
}

func (r *LeadRepository) List(ctx context.Context, f lead.ListFilters) ([]lead.Lead, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Region != "" {
		args = append(args, f.Region)
		conditions = append(conditions, fmt.Sprintf("region = $%d", len(args)))
	}
	if f.PartnerID != 0 {
		args = append(args, f.PartnerID)
		conditions = append(conditions, fmt.Sprintf("assigned_partner_id = $%d", len(args)))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) ListByPartner(ctx context.Context, partnerID int64, f lead.ListFilters) ([]lead.Lead, error) {
	f.PartnerID = partnerID
	return r.List(ctx, f)
}

func (r *LeadRepository) Update(ctx context.Context, l *lead.Lead) error {
	query := `
		UPDATE leads
		SET customer_name = $2, customer_email = $3, customer_phone = $4,
		    address = $5, city = $6, postal_code = $7, region = $8,
		    summary = $9, details = $10, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(
		ctx, query,
		l.ID, l.CustomerName, l.CustomerEmail, l.CustomerPhone,
		l.Address, l.City, l.PostalCode, l.Region, l.Summary, l.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *LeadRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// statusTimestampColumn maps a target status onto the timestamp column
// it stamps, if any.
func statusTimestampColumn(to lead.Status) string {
	switch to {
	case lead.StatusAssigned:
		// Forced assignments through the generic status write still
		// stamp the assignment time; AssignPartner stamps it itself.
		return "assigned_at"
	case lead.StatusAccepted:
		return "accepted_at"
	case lead.StatusQuoted:
		return "quoted_at"
	case lead.StatusApproved, lead.StatusDeclined:
		return "customer_response_at"
	default:
		return ""
	}
}

// UpdateStatus is the guarded status write. A zero-row result is
// disambiguated into not-found versus lost-race by re-reading the row.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id int64, from, to lead.Status) error {
	query := `UPDATE leads SET status = $3, updated_at = NOW()`
	if col := statusTimestampColumn(to); col != "" {
		query += fmt.Sprintf(", %s = NOW()", col)
	}
	query += ` WHERE id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, id)
	}
	return nil
}

func (r *LeadRepository) AssignPartner(ctx context.Context, id int64, from lead.Status, partnerID int64) error {
	query := `
		UPDATE leads
		SET status = $3, assigned_partner_id = $4, assigned_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Exec(ctx, query, id, from, lead.StatusAssigned, partnerID)
	if err != nil {
		return fmt.Errorf("failed to assign lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, id)
	}
	return nil
}

func (r *LeadRepository) Recall(ctx context.Context, id int64, from, target lead.Status) error {
	query := `UPDATE leads SET status = $3, updated_at = NOW()`
	if target == lead.StatusNew {
		query += `, assigned_partner_id = NULL, assigned_at = NULL`
	}
	query += ` WHERE id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query, id, from, target)
	if err != nil {
		return fmt.Errorf("failed to recall lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.casFailure(ctx, id)
	}
	return nil
}

func (r *LeadRepository) MarkViewed(ctx context.Context, id int64) error {
	query := `
		UPDATE leads
		SET viewed_details = TRUE, view_count = view_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark lead viewed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ChargeLeadFee is guarded on billed = FALSE so a double accept never
// charges twice.
func (r *LeadRepository) ChargeLeadFee(ctx context.Context, id int64, fee decimal.Decimal, at time.Time) (bool, error) {
	query := `
		UPDATE leads
		SET billed = TRUE, billed_at = $3,
		    partner_debt = partner_debt + $2, updated_at = NOW()
		WHERE id = $1 AND billed = FALSE
	`
	tag, err := r.db.Exec(ctx, query, id, fee, at)
	if err != nil {
		return false, fmt.Errorf("failed to charge lead fee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already billed, or missing entirely.
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return false, ferr
		}
		return false, nil
	}
	return true, nil
}

func (r *LeadRepository) AddCommission(ctx context.Context, id int64, amount decimal.Decimal) error {
	query := `
		UPDATE leads
		SET partner_commission = partner_commission + $2,
		    partner_debt = partner_debt + $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to add commission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *LeadRepository) SetTotalAmount(ctx context.Context, id int64, total decimal.Decimal) error {
	query := `UPDATE leads SET total_amount = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, total)
	if err != nil {
		return fmt.Errorf("failed to set lead total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *LeadRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `
		UPDATE leads
		SET status = $2, updated_at = NOW()
		WHERE status = $1 AND created_at < $3
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, lead.StatusNew, lead.StatusExpired, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire leads: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired lead id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *LeadRepository) OutstandingDebtByPartner(ctx context.Context) (map[int64]decimal.Decimal, error) {
	query := `
		SELECT assigned_partner_id, SUM(partner_debt)
		FROM leads
		WHERE assigned_partner_id IS NOT NULL AND partner_debt > 0
		GROUP BY assigned_partner_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to sum partner debt: %w", err)
	}
	defer rows.Close()

	debts := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var partnerID int64
		var debt decimal.Decimal
		if err := rows.Scan(&partnerID, &debt); err != nil {
			return nil, fmt.Errorf("failed to scan partner debt: %w", err)
		}
		debts[partnerID] = debt
	}
	return debts, rows.Err()
}

func (r *LeadRepository) ResetDebtForPartner(ctx context.Context, partnerID int64) error {
	query := `
		UPDATE leads
		SET partner_debt = 0, updated_at = NOW()
		WHERE assigned_partner_id = $1 AND partner_debt > 0
	`
	if _, err := r.db.Exec(ctx, query, partnerID); err != nil {
		return fmt.Errorf("failed to reset partner debt: %w", err)
	}
	return nil
}

// casFailure decides whether a zero-row guarded update means the lead is
// gone or the status moved underneath the caller.
func (r *LeadRepository) casFailure(ctx context.Context, id int64) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return xerrors.ErrConcurrentModification
}

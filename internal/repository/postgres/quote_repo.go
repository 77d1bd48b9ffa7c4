// internal/repository/postgres/quote_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arborlead-service/internal/domain/quote"
	xerrors "arborlead-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QuoteRepository struct {
	db *pgxpool.Pool
}

func NewQuoteRepository(db *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{db: db}
}

const quoteColumns = `
	id, lead_id, reference, status,
	subtotal, discount, commission, final_total,
	commission_rate, discount_rate,
	sent_at, customer_response_at, versions,
	created_at, updated_at
`

func scanQuote(row pgx.Row) (*quote.Quote, error) {
	var q quote.Quote
	var versionsJSON []byte
	err := row.Scan(
		&q.ID, &q.LeadID, &q.Reference, &q.Status,
		&q.Subtotal, &q.Discount, &q.Commission, &q.FinalTotal,
		&q.CommissionRate, &q.DiscountRate,
		&q.SentAt, &q.CustomerResponseAt, &versionsJSON,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan quote: %w", err)
	}
	if len(versionsJSON) > 0 {
		if err := json.Unmarshal(versionsJSON, &q.Versions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quote versions: %w", err)
		}
	}
	return &q, nil
}

// Create stores the quote, its items and its first version atomically.
func (r *QuoteRepository) Create(ctx context.Context, q *quote.Quote) error {
	versionsJSON, err := json.Marshal(q.Versions)
	if err != nil {
		return fmt.Errorf("failed to marshal quote versions: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO quotes (
			lead_id, reference, status,
			subtotal, discount, commission, final_total,
			commission_rate, discount_rate, versions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(
		ctx, query,
		q.LeadID, q.Reference, q.Status,
		q.Subtotal, q.Discount, q.Commission, q.FinalTotal,
		q.CommissionRate, q.DiscountRate, versionsJSON,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}

	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return err
	}
	for i := range q.Items {
		q.Items[i].QuoteID = q.ID
	}

	return tx.Commit(ctx)
}

func insertItems(ctx context.Context, tx pgx.Tx, quoteID int64, items []quote.Item) error {
	query := `
		INSERT INTO quote_items (
			quote_id, tree_species, operation_type, custom_operation,
			quantity, unit_price, line_total
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	for i := range items {
		err := tx.QueryRow(
			ctx, query,
			quoteID, items[i].TreeSpecies, items[i].OperationType, items[i].CustomOperation,
			items[i].Quantity, items[i].UnitPrice, items[i].LineTotal,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert quote item: %w", err)
		}
	}
	return nil
}

func (r *QuoteRepository) loadItems(ctx context.Context, q *quote.Quote) error {
	query := `
		SELECT id, quote_id, tree_species, operation_type, custom_operation,
		       quantity, unit_price, line_total
		FROM quote_items
		WHERE quote_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, q.ID)
	if err != nil {
		return fmt.Errorf("failed to load quote items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item quote.Item
		err := rows.Scan(
			&item.ID, &item.QuoteID, &item.TreeSpecies, &item.OperationType,
			&item.CustomOperation, &item.Quantity, &item.UnitPrice, &item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("failed to scan quote item: %w", err)
		}
		q.Items = append(q.Items, item)
	}
	return rows.Err()
}

func (r *QuoteRepository) FindByID(ctx context.Context, id int64) (*quote.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	q, err := scanQuote(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *QuoteRepository) FindByReference(ctx context.Context, reference string) (*quote.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE reference = $1`
	q, err := scanQuote(r.db.QueryRow(ctx, query, reference))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *QuoteRepository) FindByLead(ctx context.Context, leadID int64) (*quote.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE lead_id = $1 ORDER BY created_at DESC LIMIT 1`
	q, err := scanQuote(r.db.QueryRow(ctx, query, leadID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ReplaceCalculation rewrites totals, items and version history in one
// transaction. The update is guarded on draft status; a quote that left
// draft is locked.
func (r *QuoteRepository) ReplaceCalculation(ctx context.Context, q *quote.Quote) error {
	versionsJSON, err := json.Marshal(q.Versions)
	if err != nil {
		return fmt.Errorf("failed to marshal quote versions: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE quotes
		SET subtotal = $2, discount = $3, commission = $4, final_total = $5,
		    commission_rate = $6, discount_rate = $7, versions = $8,
		    updated_at = NOW()
		WHERE id = $1 AND status = $9
	`
	tag, err := tx.Exec(
		ctx, query,
		q.ID, q.Subtotal, q.Discount, q.Commission, q.FinalTotal,
		q.CommissionRate, q.DiscountRate, versionsJSON, quote.StatusDraft,
	)
	if err != nil {
		return fmt.Errorf("failed to update quote calculation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, q.ID); ferr != nil {
			return ferr
		}
		return xerrors.ErrQuoteLocked
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, q.ID); err != nil {
		return fmt.Errorf("failed to clear quote items: %w", err)
	}
	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return err
	}
	for i := range q.Items {
		q.Items[i].QuoteID = q.ID
	}

	return tx.Commit(ctx)
}

func (r *QuoteRepository) UpdateStatus(ctx context.Context, id int64, from, to quote.Status, at time.Time) error {
	query := `UPDATE quotes SET status = $3, updated_at = NOW()`
	switch to {
	case quote.StatusSent:
		query += `, sent_at = $4`
	case quote.StatusApproved, quote.StatusDeclined:
		query += `, customer_response_at = $4`
	}
	query += ` WHERE id = $1 AND status = $2`

	args := []interface{}{id, from, to}
	if to != quote.StatusDraft {
		args = append(args, at)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update quote status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return ferr
		}
		return xerrors.ErrConcurrentModification
	}
	return nil
}

// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"arborlead-service/internal/domain/user"
	xerrors "arborlead-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, hashed_password, full_name, role, is_active,
	region, service_regions, debt, created_at, updated_at
`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.IsActive,
		&u.Region, &u.ServiceRegions, &u.Debt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (email, hashed_password, full_name, role, is_active, region, service_regions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(
		ctx, query,
		u.Email, u.HashedPassword, u.FullName, u.Role, u.IsActive, u.Region, u.ServiceRegions,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindPartner(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND role = $2 AND is_active = TRUE`
	return scanUser(r.db.QueryRow(ctx, query, id, user.RolePartner))
}

func (r *UserRepository) ListPartners(ctx context.Context, region string) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND is_active = TRUE`
	args := []interface{}{user.RolePartner}
	if region != "" {
		args = append(args, region)
		query += ` AND (region = $2 OR $2 = ANY(service_regions))`
	}
	query += ` ORDER BY full_name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	var partners []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, *u)
	}
	return partners, rows.Err()
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hashed string) error {
	query := `UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, hashed)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// TopPartners ranks partners by acceptance rate over their assigned
// leads, faster average response breaking ties.
func (r *UserRepository) TopPartners(ctx context.Context, region string, limit int) ([]user.PartnerRanking, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := `
		SELECT u.id, u.full_name, COALESCE(u.region, ''),
		       COUNT(l.id) AS assigned,
		       COUNT(l.id) FILTER (WHERE l.accepted_at IS NOT NULL) AS accepted,
		       COALESCE(AVG(EXTRACT(EPOCH FROM (l.accepted_at - l.assigned_at)) / 3600.0)
		                FILTER (WHERE l.accepted_at IS NOT NULL), 0) AS avg_response_hrs
		FROM users u
		LEFT JOIN leads l ON l.assigned_partner_id = u.id
		WHERE u.role = $1 AND u.is_active = TRUE
	`
	args := []interface{}{user.RolePartner}
	if region != "" {
		args = append(args, region)
		query += ` AND (u.region = $2 OR $2 = ANY(u.service_regions))`
	}
	args = append(args, limit)
	query += fmt.Sprintf(`
		GROUP BY u.id, u.full_name, u.region
		ORDER BY CASE WHEN COUNT(l.id) = 0 THEN 0
		              ELSE COUNT(l.id) FILTER (WHERE l.accepted_at IS NOT NULL)::float / COUNT(l.id) END DESC,
		         avg_response_hrs ASC
		LIMIT $%d
	`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to rank partners: %w", err)
	}
	defer rows.Close()

	var rankings []user.PartnerRanking
	for rows.Next() {
		var p user.PartnerRanking
		if err := rows.Scan(&p.PartnerID, &p.FullName, &p.Region, &p.AssignedLeads, &p.AcceptedLeads, &p.AvgResponseHrs); err != nil {
			return nil, fmt.Errorf("failed to scan partner ranking: %w", err)
		}
		if p.AssignedLeads > 0 {
			p.AcceptRate = float64(p.AcceptedLeads) / float64(p.AssignedLeads) * 100
		}
		rankings = append(rankings, p)
	}
	return rankings, rows.Err()
}

func (r *UserRepository) SetDebt(ctx context.Context, id int64, debt decimal.Decimal) error {
	query := `UPDATE users SET debt = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, debt)
	if err != nil {
		return fmt.Errorf("failed to set partner debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// internal/domain/user/repository.go
package user

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository is the persistence contract for users and the partner
// directory lookups the workflow needs.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindPartner returns the user only if it exists, is active and has
	// the partner role.
	FindPartner(ctx context.Context, id int64) (*User, error)
	ListPartners(ctx context.Context, region string) ([]User, error)
	UpdatePassword(ctx context.Context, id int64, hashed string) error
	// TopPartners ranks a region's partners by accept rate, breaking
	// ties on faster response time.
	TopPartners(ctx context.Context, region string, limit int) ([]PartnerRanking, error)
	// SetDebt overwrites the partner's cached debt snapshot.
	SetDebt(ctx context.Context, id int64, debt decimal.Decimal) error
}

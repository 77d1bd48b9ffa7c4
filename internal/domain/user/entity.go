// internal/domain/user/entity.go
package user

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Role is the authenticated actor role. Customers are not authenticated
// users; they respond to quotes over a separate channel.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
)

type User struct {
	ID             int64          `json:"id" db:"id"`
	Email          string         `json:"email" db:"email"`
	HashedPassword string         `json:"-" db:"hashed_password"`
	FullName       string         `json:"full_name" db:"full_name"`
	Role           Role           `json:"role" db:"role"`
	IsActive       bool           `json:"is_active" db:"is_active"`

	// Partner fields
	Region         sql.NullString  `json:"region,omitempty" db:"region"`
	ServiceRegions pq.StringArray  `json:"service_regions,omitempty" db:"service_regions"`
	Debt           decimal.Decimal `json:"debt" db:"debt"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ServesRegion reports whether a partner covers the given region, either
// as their home region or one of their additional service regions.
func (u *User) ServesRegion(region string) bool {
	if region == "" {
		return true
	}
	if u.Region.Valid && u.Region.String == region {
		return true
	}
	for _, r := range u.ServiceRegions {
		if r == region {
			return true
		}
	}
	return false
}

// PartnerRanking is a partner scored by historical lead performance.
type PartnerRanking struct {
	PartnerID       int64   `json:"partner_id"`
	FullName        string  `json:"full_name"`
	Region          string  `json:"region"`
	AssignedLeads   int64   `json:"assigned_leads"`
	AcceptedLeads   int64   `json:"accepted_leads"`
	AcceptRate      float64 `json:"accept_rate"`
	AvgResponseHrs  float64 `json:"avg_response_hours"`
}

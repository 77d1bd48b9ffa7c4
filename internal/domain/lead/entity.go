// internal/domain/lead/entity.go
package lead

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Lead struct {
	ID int64 `json:"id" db:"id"`

	// Customer contact
	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerEmail string `json:"customer_email" db:"customer_email"`
	CustomerPhone string `json:"customer_phone" db:"customer_phone"`

	// Site address
	Address    string `json:"address" db:"address"`
	City       string `json:"city" db:"city"`
	PostalCode string `json:"postal_code" db:"postal_code"`
	Region     string `json:"region" db:"region"`

	Summary string         `json:"summary" db:"summary"`
	Details sql.NullString `json:"details,omitempty" db:"details"`

	Status            Status        `json:"status" db:"status"`
	AssignedPartnerID sql.NullInt64 `json:"assigned_partner_id,omitempty" db:"assigned_partner_id"`

	// Workflow timestamps
	AssignedAt         sql.NullTime `json:"assigned_at,omitempty" db:"assigned_at"`
	AcceptedAt         sql.NullTime `json:"accepted_at,omitempty" db:"accepted_at"`
	QuotedAt           sql.NullTime `json:"quoted_at,omitempty" db:"quoted_at"`
	CustomerResponseAt sql.NullTime `json:"customer_response_at,omitempty" db:"customer_response_at"`
	ExpiresAt          sql.NullTime `json:"expires_at,omitempty" db:"expires_at"`

	// Billing
	LeadFee           decimal.Decimal `json:"lead_fee" db:"lead_fee"`
	CommissionPercent decimal.Decimal `json:"commission_percent" db:"commission_percent"`
	Billed            bool            `json:"billed" db:"billed"`
	BilledAt          sql.NullTime    `json:"billed_at,omitempty" db:"billed_at"`
	PartnerDebt       decimal.Decimal `json:"partner_debt" db:"partner_debt"`
	PartnerCommission decimal.Decimal `json:"partner_commission" db:"partner_commission"`
	// TotalAmount mirrors the latest sent quote's total so billing can
	// compute commission without re-reading the quote.
	TotalAmount decimal.NullDecimal `json:"total_amount,omitempty" db:"total_amount"`

	// Partner preview tracking
	ViewedDetails bool `json:"viewed_details" db:"viewed_details"`
	ViewCount     int  `json:"view_count" db:"view_count"`

	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

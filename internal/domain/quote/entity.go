// internal/domain/quote/entity.go
package quote

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	xerrors "arborlead-service/internal/pkg/errors"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// ParseStatus normalizes a quote status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDraft, StatusSent, StatusApproved, StatusDeclined:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown quote status %q", xerrors.ErrInvalidInput, s)
}

// Editable reports whether a quote may still be recalculated. Quotes are
// locked once sent.
func (s Status) Editable() bool {
	return s == StatusDraft
}

// TreeSpecies carries the bilingual labels the customer-facing offert
// prints; Swedish first, English in parentheses.
type TreeSpecies string

const (
	SpeciesPine       TreeSpecies = "Tall (Pine)"
	SpeciesSpruce     TreeSpecies = "Gran (Spruce)"
	SpeciesOak        TreeSpecies = "Ek (Oak)"
	SpeciesBeech      TreeSpecies = "Bok (Beech)"
	SpeciesMaple      TreeSpecies = "Lönn (Maple)"
	SpeciesAsh        TreeSpecies = "Ask (Ash)"
	SpeciesAlder      TreeSpecies = "Al (Alder)"
	SpeciesBirch      TreeSpecies = "Björk (Birch)"
	SpeciesLinden     TreeSpecies = "Lind (Linden)"
	SpeciesBirdCherry TreeSpecies = "Hägg (Bird Cherry)"
	SpeciesRowan      TreeSpecies = "Rönn (Rowan)"
	SpeciesCherry     TreeSpecies = "Körsbär (Cherry)"
	SpeciesWalnut     TreeSpecies = "Valnöt (Walnut)"
	SpeciesPoplar     TreeSpecies = "Poppel (Poplar)"
	SpeciesPlane      TreeSpecies = "Platan (Plane)"
	SpeciesWillow     TreeSpecies = "Pil (Willow)"
)

var validSpecies = map[TreeSpecies]struct{}{
	SpeciesPine: {}, SpeciesSpruce: {}, SpeciesOak: {}, SpeciesBeech: {},
	SpeciesMaple: {}, SpeciesAsh: {}, SpeciesAlder: {}, SpeciesBirch: {},
	SpeciesLinden: {}, SpeciesBirdCherry: {}, SpeciesRowan: {}, SpeciesCherry: {},
	SpeciesWalnut: {}, SpeciesPoplar: {}, SpeciesPlane: {}, SpeciesWillow: {},
}

func (s TreeSpecies) Valid() bool {
	_, ok := validSpecies[s]
	return ok
}

// OperationType is the arborist operation catalogue, Swedish labels.
type OperationType string

const (
	OpDeadWood               OperationType = "Död veds beskärning"
	OpFelling                OperationType = "Trädfällning"
	OpSectionFelling         OperationType = "Sektionsfällning"
	OpAdvancedSectionFelling OperationType = "Avancerad sektionsfällning"
	OpCrownReduction         OperationType = "Kronreducering"
	OpMaintenancePruning     OperationType = "Underhållsbeskäring"
	OpSpacePruning           OperationType = "Utrymmesbeskärning"
	OpCrownLifting           OperationType = "Kronlyft"
	OpPollarding             OperationType = "Hamling"
	OpOther                  OperationType = "Annat"
	OpRemoval                OperationType = "Bortförsling"
	OpThinning               OperationType = "Urglesing"
	OpStumpGrinding          OperationType = "Stubbfräsning"
	OpCrownStabilization     OperationType = "Kronstabilisering"
	OpEmergency              OperationType = "Jour"
)

var validOperations = map[OperationType]struct{}{
	OpDeadWood: {}, OpFelling: {}, OpSectionFelling: {}, OpAdvancedSectionFelling: {},
	OpCrownReduction: {}, OpMaintenancePruning: {}, OpSpacePruning: {}, OpCrownLifting: {},
	OpPollarding: {}, OpOther: {}, OpRemoval: {}, OpThinning: {},
	OpStumpGrinding: {}, OpCrownStabilization: {}, OpEmergency: {},
}

func (o OperationType) Valid() bool {
	_, ok := validOperations[o]
	return ok
}

type Quote struct {
	ID        int64  `json:"id" db:"id"`
	LeadID    int64  `json:"lead_id" db:"lead_id"`
	Reference string `json:"reference" db:"reference"`
	Status    Status `json:"status" db:"status"`

	Subtotal   decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount   decimal.Decimal `json:"discount" db:"discount"`
	Commission decimal.Decimal `json:"commission" db:"commission"`
	FinalTotal decimal.Decimal `json:"final_total" db:"final_total"`

	CommissionRate decimal.Decimal `json:"commission_rate" db:"commission_rate"`
	DiscountRate   decimal.Decimal `json:"discount_rate" db:"discount_rate"`

	SentAt             sql.NullTime `json:"sent_at,omitempty" db:"sent_at"`
	CustomerResponseAt sql.NullTime `json:"customer_response_at,omitempty" db:"customer_response_at"`

	Items    []Item    `json:"items"`
	Versions []Version `json:"versions"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Item struct {
	ID              int64           `json:"id" db:"id"`
	QuoteID         int64           `json:"quote_id" db:"quote_id"`
	TreeSpecies     TreeSpecies     `json:"tree_species" db:"tree_species"`
	OperationType   OperationType   `json:"operation_type" db:"operation_type"`
	CustomOperation sql.NullString  `json:"custom_operation,omitempty" db:"custom_operation"`
	Quantity        int             `json:"quantity" db:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total" db:"line_total"`
}

// Version is one append-only snapshot of a calculation. The version
// number is 1-based and assigned as len(existing)+1.
type Version struct {
	Version    int             `json:"version"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Commission decimal.Decimal `json:"commission"`
	FinalTotal decimal.Decimal `json:"final_total"`
	CreatedAt  time.Time       `json:"created_at"`
}

// internal/domain/quote/calculator.go
package quote

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	xerrors "arborlead-service/internal/pkg/errors"
)

// LineInput is one requested line before pricing.
type LineInput struct {
	TreeSpecies     TreeSpecies
	OperationType   OperationType
	CustomOperation string
	Quantity        int
	UnitPrice       decimal.Decimal
}

// Calculation is the priced result. All four money fields are rounded to
// two decimals, half away from zero. Rounding happens once on the final
// outputs; intermediates carry full precision.
type Calculation struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Commission decimal.Decimal
	FinalTotal decimal.Decimal
	Items      []Item
}

// Calculator prices a quote: subtotal over line totals, optional
// discount, commission on the discounted base, final total.
type Calculator struct {
	CommissionRate decimal.Decimal
	DiscountRate   decimal.Decimal
}

var one = decimal.NewFromInt(1)

// NewCalculator validates the rates. Commission and discount must both
// sit in [0, 1]; a full discount or full commission is legal arithmetic.
func NewCalculator(commissionRate, discountRate decimal.Decimal) (*Calculator, error) {
	if commissionRate.IsNegative() || commissionRate.GreaterThan(one) {
		return nil, fmt.Errorf("%w: commission rate %s out of range", xerrors.ErrInvalidRate, commissionRate)
	}
	if discountRate.IsNegative() || discountRate.GreaterThan(one) {
		return nil, fmt.Errorf("%w: discount rate %s out of range", xerrors.ErrInvalidRate, discountRate)
	}
	return &Calculator{CommissionRate: commissionRate, DiscountRate: discountRate}, nil
}

// Calculate prices the given lines. applyDiscount gates the discount
// rate; a zero rate with applyDiscount true is still a zero discount.
func (c *Calculator) Calculate(lines []LineInput, applyDiscount bool) (*Calculation, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: quote requires at least one line item", xerrors.ErrInvalidLineItem)
	}

	subtotal := decimal.Zero
	items := make([]Item, 0, len(lines))
	for i, line := range lines {
		if err := validateLine(i, line); err != nil {
			return nil, err
		}
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		item := Item{
			TreeSpecies:   line.TreeSpecies,
			OperationType: line.OperationType,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			LineTotal:     lineTotal.Round(2),
		}
		if line.CustomOperation != "" {
			item.CustomOperation.Valid = true
			item.CustomOperation.String = line.CustomOperation
		}
		items = append(items, item)
	}

	discount := decimal.Zero
	if applyDiscount {
		discount = subtotal.Mul(c.DiscountRate)
	}
	discounted := subtotal.Sub(discount)
	commission := discounted.Mul(c.CommissionRate)
	finalTotal := discounted.Add(commission)

	return &Calculation{
		Subtotal:   subtotal.Round(2),
		Discount:   discount.Round(2),
		Commission: commission.Round(2),
		FinalTotal: finalTotal.Round(2),
		Items:      items,
	}, nil
}

func validateLine(idx int, line LineInput) error {
	if !line.TreeSpecies.Valid() {
		return fmt.Errorf("%w: item %d has unknown tree species %q", xerrors.ErrInvalidLineItem, idx, line.TreeSpecies)
	}
	if !line.OperationType.Valid() {
		return fmt.Errorf("%w: item %d has unknown operation %q", xerrors.ErrInvalidLineItem, idx, line.OperationType)
	}
	if line.OperationType == OpOther && line.CustomOperation == "" {
		return fmt.Errorf("%w: item %d operation %q requires a description", xerrors.ErrInvalidLineItem, idx, OpOther)
	}
	if line.Quantity <= 0 {
		return fmt.Errorf("%w: item %d quantity must be positive", xerrors.ErrInvalidLineItem, idx)
	}
	if line.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: item %d unit price must not be negative", xerrors.ErrInvalidLineItem, idx)
	}
	return nil
}

// NextVersion builds the append-only snapshot for a fresh calculation.
// Versions are numbered from 1.
func NextVersion(existing []Version, calc *Calculation, at time.Time) Version {
	return Version{
		Version:    len(existing) + 1,
		Subtotal:   calc.Subtotal,
		Discount:   calc.Discount,
		Commission: calc.Commission,
		FinalTotal: calc.FinalTotal,
		CreatedAt:  at,
	}
}

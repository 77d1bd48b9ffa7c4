// internal/domain/quote/dto.go
package quote

type ItemRequest struct {
	TreeSpecies     string `json:"tree_species" binding:"required"`
	OperationType   string `json:"operation_type" binding:"required"`
	CustomOperation string `json:"custom_operation"`
	Quantity        int    `json:"quantity" binding:"required,min=1"`
	UnitPrice       string `json:"unit_price" binding:"required"`
}

type CreateQuoteRequest struct {
	LeadID        int64         `json:"lead_id" binding:"required"`
	Items         []ItemRequest `json:"items" binding:"required,min=1,dive"`
	ApplyDiscount bool          `json:"apply_discount"`
	// DiscountRate and CommissionRate override the configured defaults
	// when set; decimal strings like "0.10".
	DiscountRate   string `json:"discount_rate"`
	CommissionRate string `json:"commission_rate"`
}

type UpdateQuoteRequest struct {
	Items          []ItemRequest `json:"items" binding:"required,min=1,dive"`
	ApplyDiscount  bool          `json:"apply_discount"`
	DiscountRate   string        `json:"discount_rate"`
	CommissionRate string        `json:"commission_rate"`
}

// CustomerResponseRequest is the unauthenticated customer decision on a
// sent quote, keyed by the quote reference.
type CustomerResponseRequest struct {
	Approve bool `json:"approve"`
}

// internal/domain/lead/dto.go
package lead

type CreateLeadRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	CustomerPhone string `json:"customer_phone" binding:"required"`
	Address       string `json:"address" binding:"required"`
	City          string `json:"city" binding:"required"`
	PostalCode    string `json:"postal_code" binding:"required"`
	Region        string `json:"region" binding:"required"`
	Summary       string `json:"summary" binding:"required"`
	Details       string `json:"details"`
}

type UpdateLeadRequest struct {
	CustomerName  *string `json:"customer_name"`
	CustomerEmail *string `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone *string `json:"customer_phone"`
	Address       *string `json:"address"`
	City          *string `json:"city"`
	PostalCode    *string `json:"postal_code"`
	Region        *string `json:"region"`
	Summary       *string `json:"summary"`
	Details       *string `json:"details"`
}

type AssignLeadRequest struct {
	PartnerID int64 `json:"partner_id" binding:"required"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListFilters narrows lead listings. Zero values mean "any".
type ListFilters struct {
	Status    string `form:"status"`
	Region    string `form:"region"`
	PartnerID int64  `form:"partner_id"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// Preview is the redacted listing shape partners see before accepting a
// lead. Customer contact details are withheld until acceptance.
type Preview struct {
	ID         int64  `json:"id"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Region     string `json:"region"`
	Summary    string `json:"summary"`
	Status     Status `json:"status"`
	CreatedAt  string `json:"created_at"`
	AssignedAt string `json:"assigned_at,omitempty"`
}

// ToPreview redacts a lead down to what an unaccepted partner may see.
func (l *Lead) ToPreview() Preview {
	p := Preview{
		ID:         l.ID,
		City:       l.City,
		PostalCode: l.PostalCode,
		Region:     l.Region,
		Summary:    l.Summary,
		Status:     l.Status,
		CreatedAt:  l.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if l.AssignedAt.Valid {
		p.AssignedAt = l.AssignedAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return p
}

// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by every issued token.
type Claims struct {
	UserID         int64  `json:"user_id"`
	Role           string `json:"role,omitempty"`
	Region         string `json:"region,omitempty"`
	SessionPurpose string `json:"session_purpose"` // access, refresh
	jwt.RegisteredClaims
}

// IsAdmin checks if the token belongs to an admin user.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// IsPartner checks if the token belongs to a partner user.
func (c *Claims) IsPartner() bool {
	return c.Role == "partner"
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}

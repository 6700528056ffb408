package domain

import (
	"fmt"
	"time"
)

// APIKeyRole distinguishes routine producers from the trusted reviewer
// surface. Promotion, discard and deletion flagging are reachable only
// with a reviewer-role key.
type APIKeyRole string

const (
	RoleAgent    APIKeyRole = "agent"
	RoleReviewer APIKeyRole = "reviewer"
)

// APIKey represents a hashed API credential
type APIKey struct {
	ID        string
	Name      string
	Role      APIKeyRole
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsRevoked reports whether the key has been revoked
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// CanReview reports whether the key grants access to the review surface
func (k *APIKey) CanReview() bool {
	return k.Role == RoleReviewer
}

// ValidateAPIKey validates an APIKey instance
func ValidateAPIKey(k *APIKey) error {
	if k == nil {
		return fmt.Errorf("api key cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("api key ID is required")
	}

	if k.Name == "" {
		return fmt.Errorf("api key Name is required")
	}

	if k.KeyHash == "" {
		return fmt.Errorf("api key KeyHash is required")
	}

	if !isValidAPIKeyRole(k.Role) {
		return fmt.Errorf("api key Role is invalid: %s", k.Role)
	}

	return nil
}

func isValidAPIKeyRole(r APIKeyRole) bool {
	switch r {
	case RoleAgent, RoleReviewer:
		return true
	}
	return false
}

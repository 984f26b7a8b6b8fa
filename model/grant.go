// model/grant.go
package model

import "time"

// TenantGrant is a caller's role and permission set inside one tenant.
// Permissions use a dotted hierarchy: "crm.read", "crm.*", or the
// universal "*".
type TenantGrant struct {
	UserID      string    `json:"user_id"`
	TenantID    string    `json:"tenant_id"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	GrantedAt   time.Time `json:"granted_at"`
	GrantedBy   string    `json:"granted_by"`
}

// GrantRequest is the admin write payload for a tenant grant.
type GrantRequest struct {
	Role        string   `json:"role" binding:"required"`
	Permissions []string `json:"permissions" binding:"required,min=1"`
}

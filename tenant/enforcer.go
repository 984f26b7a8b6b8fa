// tenant/enforcer.go
package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
)

// GrantReader resolves the grant for a (user, tenant) pair. *identity.Grants
// satisfies this.
type GrantReader interface {
	Grant(ctx context.Context, userID, tenantID string) (*model.TenantGrant, error)
}

// Enforcer walks a request through resolveTenant → checkMembership →
// checkPermission. It holds no per-request state.
type Enforcer struct {
	grants GrantReader
}

func NewEnforcer(grants GrantReader) *Enforcer {
	return &Enforcer{grants: grants}
}

// ResolveTenant picks the active tenant for the request. The explicit
// override header is honored only for super-admins; for anyone else it is
// ignored and the caller's recorded active tenant applies.
func (e *Enforcer) ResolveTenant(p *identity.Principal, override string) (string, error) {
	if override != "" {
		if p.SuperAdmin {
			return override, nil
		}
		logger.Debug("Ignoring tenant override from non-admin caller",
			zap.String("userID", p.UserID),
			zap.String("override", override))
	}
	if p.ActiveTenant != "" {
		return p.ActiveTenant, nil
	}
	return "", gw_errors.TenantRequired()
}

// CheckMembership returns the caller's grant for the tenant. Super-admins
// bypass membership entirely and act under a synthetic universal grant.
func (e *Enforcer) CheckMembership(ctx context.Context, p *identity.Principal, tenantID string) (*model.TenantGrant, error) {
	if p.SuperAdmin {
		return &model.TenantGrant{
			UserID:      p.UserID,
			TenantID:    tenantID,
			Role:        "super-admin",
			Permissions: []string{"*"},
			GrantedAt:   time.Now().UTC(),
		}, nil
	}

	grant, err := e.grants.Grant(ctx, p.UserID, tenantID)
	if err != nil {
		if errors.Is(err, identity.ErrGrantNotFound) {
			return nil, gw_errors.TenantAccessDenied(tenantID)
		}
		return nil, err
	}
	return grant, nil
}

// AuthorizeAll checks that the grant covers every required permission.
func AuthorizeAll(grant *model.TenantGrant, required ...string) error {
	for _, perm := range required {
		if !HasPermission(grant.Permissions, perm) {
			return gw_errors.Authorization("missing permission " + perm)
		}
	}
	return nil
}

// AuthorizeAny checks that the grant covers at least one required permission.
func AuthorizeAny(grant *model.TenantGrant, required ...string) error {
	for _, perm := range required {
		if HasPermission(grant.Permissions, perm) {
			return nil
		}
	}
	return gw_errors.Authorization("missing permission, any of: " + strings.Join(required, ", "))
}

// HasPermission applies hierarchical matching: an exact entry, a "prefix.*"
// entry covering "prefix.anything", or the universal "*".
func HasPermission(granted []string, required string) bool {
	for _, g := range granted {
		if g == "*" || g == required {
			return true
		}
		if strings.HasSuffix(g, ".*") {
			prefix := g[:len(g)-1] // keeps the trailing dot
			if strings.HasPrefix(required, prefix) {
				return true
			}
		}
	}
	return false
}

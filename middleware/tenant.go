package middleware

import (
	"github.com/gin-gonic/gin"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
	"github.com/GPT-Gradient/xynergy-core-sub001/tenant"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// Tenant resolves the active tenant and verifies membership, storing the
// tenant id and the caller's grant in the request context. Runs after Auth.
func Tenant(enforcer *tenant.Enforcer, bus *util.EventBus) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			util.AbortWithError(c, gw_errors.Authentication("missing credentials", nil))
			return
		}

		tenantID, err := enforcer.ResolveTenant(principal, c.GetHeader("X-Tenant-Id"))
		if err != nil {
			util.AbortWithError(c, err)
			return
		}

		grant, err := enforcer.CheckMembership(c.Request.Context(), principal, tenantID)
		if err != nil {
			bus.Publish(c.Request.Context(), util.EventAccessDenied, map[string]string{
				"userID":    principal.UserID,
				"tenantID":  tenantID,
				"path":      c.Request.URL.Path,
				"requestID": util.GetRequestIDFromContext(c),
			})
			util.AbortWithError(c, err)
			return
		}

		c.Set("tenantID", tenantID)
		c.Set("grant", grant)
		c.Next()
	}
}

// GetGrant retrieves the tenant grant set by Tenant.
func GetGrant(c *gin.Context) (*model.TenantGrant, bool) {
	v, exists := c.Get("grant")
	if !exists {
		return nil, false
	}
	grant, ok := v.(*model.TenantGrant)
	return grant, ok
}

// controller/grant_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	"github.com/GPT-Gradient/xynergy-core-sub001/middleware"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// GrantController is the super-admin surface for tenant grants. Writes go
// through to the identity store and evict the cached copy before returning,
// so a revocation takes effect immediately rather than after the grant TTL.
type GrantController struct {
	grants *identity.Grants
	bus    *util.EventBus
}

func NewGrantController(grants *identity.Grants, bus *util.EventBus) *GrantController {
	return &GrantController{grants: grants, bus: bus}
}

func (gc *GrantController) RegisterRoutes(r *gin.RouterGroup) {
	grants := r.Group("/tenants/:tenantId/grants")
	{
		grants.PUT("/:userId", gc.PutGrant)
		grants.DELETE("/:userId", gc.RevokeGrant)
	}
}

// PutGrant endpoint
func (gc *GrantController) PutGrant(c *gin.Context) {
	var req model.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, gw_errors.Validation("invalid grant payload"))
		return
	}

	principal, _ := middleware.GetPrincipal(c)
	grant := model.TenantGrant{
		UserID:      c.Param("userId"),
		TenantID:    c.Param("tenantId"),
		Role:        req.Role,
		Permissions: req.Permissions,
		GrantedAt:   time.Now().UTC(),
		GrantedBy:   principal.UserID,
	}

	if err := gc.grants.PutGrant(c.Request.Context(), grant); err != nil {
		util.RespondWithError(c, err)
		return
	}

	gc.bus.Publish(c.Request.Context(), util.EventGrantWritten, grant)
	util.RespondWithData(c, http.StatusOK, grant)
}

// RevokeGrant endpoint
func (gc *GrantController) RevokeGrant(c *gin.Context) {
	userID := c.Param("userId")
	tenantID := c.Param("tenantId")

	if err := gc.grants.RevokeGrant(c.Request.Context(), userID, tenantID); err != nil {
		util.RespondWithError(c, err)
		return
	}

	gc.bus.Publish(c.Request.Context(), util.EventGrantRevoked, map[string]string{
		"userID":   userID,
		"tenantID": tenantID,
	})
	c.Status(http.StatusNoContent)
}

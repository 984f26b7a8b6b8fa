// controller/audit_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GPT-Gradient/xynergy-core-sub001/audit"
	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// AuditController lets platform admins query the gateway audit trail.
type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{auditService: auditService}
}

func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit", ac.QueryLogs)
}

// QueryLogs endpoint
func (ac *AuditController) QueryLogs(c *gin.Context) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	var err error
	if s := c.Query("from"); s != "" {
		if from, err = time.Parse(time.RFC3339, s); err != nil {
			util.RespondWithError(c, gw_errors.Validation("invalid 'from' timestamp"))
			return
		}
	}
	if s := c.Query("to"); s != "" {
		if to, err = time.Parse(time.RFC3339, s); err != nil {
			util.RespondWithError(c, gw_errors.Validation("invalid 'to' timestamp"))
			return
		}
	}

	logs, err := ac.auditService.Query(c.Request.Context(), from, to, c.Query("userId"), c.Query("tenantId"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	util.RespondWithData(c, http.StatusOK, logs)
}

// controller/realtime_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GPT-Gradient/xynergy-core-sub001/config"
	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/middleware"
	"github.com/GPT-Gradient/xynergy-core-sub001/realtime"
	"github.com/GPT-Gradient/xynergy-core-sub001/tenant"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// RealtimeController upgrades authenticated requests to long-lived websocket
// connections attached to the fan-out hub. Auth runs in middleware before
// the upgrade, so no subscription state exists for rejected credentials.
type RealtimeController struct {
	hub      *realtime.Hub
	enforcer *tenant.Enforcer
	cfg      config.RealtimeConfiguration
	upgrader websocket.Upgrader
}

func NewRealtimeController(hub *realtime.Hub, enforcer *tenant.Enforcer, cfg config.RealtimeConfiguration, origins *middleware.OriginMatcher) *RealtimeController {
	return &RealtimeController{
		hub:      hub,
		enforcer: enforcer,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header
				return origin == "" || origins.Match(origin)
			},
		},
	}
}

func (rc *RealtimeController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", rc.Connect)
}

// Connect endpoint
func (rc *RealtimeController) Connect(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		util.RespondWithError(c, gw_errors.Authentication("missing credentials", nil))
		return
	}

	tenantID, err := rc.enforcer.ResolveTenant(principal, c.GetHeader("X-Tenant-Id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if _, err := rc.enforcer.CheckMembership(c.Request.Context(), principal, tenantID); err != nil {
		util.RespondWithError(c, err)
		return
	}

	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed",
			zap.String("userID", principal.UserID),
			zap.Error(err))
		return
	}

	client := realtime.NewClient(
		rc.hub, conn,
		principal.UserID, tenantID,
		rc.cfg.SendBuffer,
		rc.cfg.MaxMessageSize,
		rc.cfg.MessagesPerSecond,
		rc.cfg.MessageBurst,
	)
	rc.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

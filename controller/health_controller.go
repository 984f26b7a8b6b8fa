// controller/health_controller.go
package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GPT-Gradient/xynergy-core-sub001/cache"
	"github.com/GPT-Gradient/xynergy-core-sub001/realtime"
	"github.com/GPT-Gradient/xynergy-core-sub001/upstream"
)

const serviceName = "xynergy-gateway"

// IdentityChecker reports reachability of the identity provider.
type IdentityChecker interface {
	Healthy(ctx context.Context) error
}

type HealthController struct {
	cache    cache.Store
	identity IdentityChecker
	router   *upstream.Router
	hub      *realtime.Hub
}

func NewHealthController(store cache.Store, identity IdentityChecker, router *upstream.Router, hub *realtime.Hub) *HealthController {
	return &HealthController{cache: store, identity: identity, router: router, hub: hub}
}

func (hc *HealthController) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", hc.Health)
	r.GET("/health/deep", hc.DeepHealth)
}

// Health is liveness only; no dependency checks.
func (hc *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
	})
}

// DeepHealth checks the cache store, the identity provider, and reports
// per-backend breaker state and call statistics.
func (hc *HealthController) DeepHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK

	cacheStatus := "ok"
	if err := hc.cache.Ping(ctx); err != nil {
		cacheStatus = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	identityStatus := "ok"
	if err := hc.identity.Healthy(ctx); err != nil {
		identityStatus = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	upstreams := gin.H{}
	for name, snapshot := range hc.router.Breakers().Snapshot() {
		upstreams[name] = snapshot
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
		"checks": gin.H{
			"cache":         cacheStatus,
			"identityStore": identityStatus,
			"upstreams":     upstreams,
		},
		"stats": gin.H{
			"backends":    hc.router.Stats(),
			"connections": hc.hub.ConnectionCount(),
		},
	})
}

// router/router.go

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/GPT-Gradient/xynergy-core-sub001/controller"
	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	"github.com/GPT-Gradient/xynergy-core-sub001/middleware"
	"github.com/GPT-Gradient/xynergy-core-sub001/ratelimit"
	"github.com/GPT-Gradient/xynergy-core-sub001/tenant"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// Limiters is a per-route-class limiter set.
type Limiters struct {
	Default *ratelimit.Limiter
	Admin   *ratelimit.Limiter
}

func SetupRouter(
	controllers *controller.Controllers,
	verifier identity.Verifier,
	enforcer *tenant.Enforcer,
	limiters Limiters,
	origins *middleware.OriginMatcher,
	bus *util.EventBus,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(origins))

	// Liveness endpoints stay outside auth
	controllers.Health.RegisterRoutes(router)

	api := router.Group("/api",
		middleware.Auth(verifier, bus),
		middleware.Tenant(enforcer, bus),
		middleware.RateLimiter(limiters.Default),
	)
	controllers.Proxy.RegisterRoutes(api)

	admin := router.Group("/api/admin",
		middleware.Auth(verifier, bus),
		middleware.RequireSuperAdmin(),
		middleware.RateLimiter(limiters.Admin),
	)
	controllers.Grants.RegisterRoutes(admin)
	controllers.Audit.RegisterRoutes(admin)

	rt := router.Group("/realtime",
		middleware.AuthWebsocket(verifier, bus),
	)
	controllers.Realtime.RegisterRoutes(rt)

	return router
}

package middleware

import (
	"github.com/gin-gonic/gin"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/identity"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// Auth validates the bearer credential from the Authorization header and
// stores the principal in the request context.
func Auth(verifier identity.Verifier, bus *util.EventBus) gin.HandlerFunc {
	return authenticate(verifier, bus, false)
}

// AuthWebsocket additionally accepts the token as a "token" query parameter,
// since browsers cannot set headers on WebSocket upgrades. Only the realtime
// handshake route mounts this; API routes keep credentials out of URLs.
func AuthWebsocket(verifier identity.Verifier, bus *util.EventBus) gin.HandlerFunc {
	return authenticate(verifier, bus, true)
}

func authenticate(verifier identity.Verifier, bus *util.EventBus, allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" && allowQueryToken {
			token = c.Query("token")
		}
		if token == "" {
			util.AbortWithError(c, gw_errors.Authentication("missing credentials", nil))
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			bus.Publish(c.Request.Context(), util.EventAuthFailure, map[string]string{
				"ip":        c.ClientIP(),
				"path":      c.Request.URL.Path,
				"requestID": util.GetRequestIDFromContext(c),
			})
			util.AbortWithError(c, err)
			return
		}

		c.Set("principal", principal)
		c.Set("userID", principal.UserID)
		c.Next()
	}
}

// GetPrincipal retrieves the authenticated principal set by Auth.
func GetPrincipal(c *gin.Context) (*identity.Principal, bool) {
	v, exists := c.Get("principal")
	if !exists {
		return nil, false
	}
	principal, ok := v.(*identity.Principal)
	return principal, ok
}

// RequireSuperAdmin guards platform-admin surfaces.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			util.AbortWithError(c, gw_errors.Authentication("missing credentials", nil))
			return
		}
		if !principal.SuperAdmin {
			util.AbortWithError(c, gw_errors.Authorization("super-admin grant required"))
			return
		}
		c.Next()
	}
}

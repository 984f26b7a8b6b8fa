// controller/proxy_controller.go
package controller

import (
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	"github.com/GPT-Gradient/xynergy-core-sub001/middleware"
	"github.com/GPT-Gradient/xynergy-core-sub001/tenant"
	"github.com/GPT-Gradient/xynergy-core-sub001/upstream"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// Headers never forwarded to backends; the gateway owns auth and re-asserts
// tenant identity itself.
var strippedHeaders = map[string]struct{}{
	"Authorization": {},
	"X-Tenant-Id":   {},
	"Cookie":        {},
}

// ProxyController exposes every configured backend under /api/{backend}/...
// and enforces a per-backend permission class before routing the call.
type ProxyController struct {
	router   *upstream.Router
	backends []string
	bus      *util.EventBus
}

func NewProxyController(router *upstream.Router, backendNames []string, bus *util.EventBus) *ProxyController {
	names := append([]string(nil), backendNames...)
	sort.Strings(names)
	return &ProxyController{router: router, backends: names, bus: bus}
}

// RegisterRoutes mounts one catch-all route per configured backend. The
// exact path set is routing-table configuration, not code.
func (pc *ProxyController) RegisterRoutes(r *gin.RouterGroup) {
	for _, name := range pc.backends {
		name := name
		r.Any("/"+name+"/*path", pc.handle(name))
	}
}

func (pc *ProxyController) handle(backendName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		grant, ok := middleware.GetGrant(c)
		if !ok {
			util.RespondWithError(c, gw_errors.Authentication("missing credentials", nil))
			return
		}
		tenantID := util.GetTenantIDFromContext(c)

		required := backendName + "." + permissionClass(c.Request.Method)
		if err := tenant.AuthorizeAll(grant, required); err != nil {
			principal, _ := middleware.GetPrincipal(c)
			pc.bus.Publish(c.Request.Context(), util.EventAccessDenied, map[string]string{
				"userID":     principal.UserID,
				"tenantID":   tenantID,
				"permission": required,
				"path":       c.Request.URL.Path,
				"requestID":  util.GetRequestIDFromContext(c),
			})
			util.RespondWithError(c, err)
			return
		}

		// Body is nil for bodiless requests built outside the http server loop.
		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				util.RespondWithError(c, gw_errors.Validation("unreadable request body"))
				return
			}
		}

		backend, _ := pc.router.Backend(backendName)
		resp, err := pc.router.Call(c.Request.Context(), backendName, c.Param("path"), upstream.CallOptions{
			Method:    c.Request.Method,
			Body:      body,
			Header:    forwardHeaders(c, tenantID),
			Query:     c.Request.URL.Query(),
			Cacheable: backend.Cacheable,
			Scope:     tenantID,
			TTL:       backend.CacheTTL,
			Tags:      []string{"tenant:" + tenantID},
		})
		if err != nil {
			util.RespondWithError(c, err)
			return
		}

		if resp.FromCache {
			c.Header("X-Cache", "HIT")
		} else {
			c.Header("X-Cache", "MISS")
		}
		c.Data(resp.Status, resp.Header.Get("Content-Type"), resp.Body)
	}
}

// permissionClass maps an HTTP method onto the backend's permission
// hierarchy: safe methods need {backend}.read, the rest {backend}.write.
func permissionClass(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read"
	default:
		return "write"
	}
}

func forwardHeaders(c *gin.Context, tenantID string) http.Header {
	header := http.Header{}
	for name, values := range c.Request.Header {
		if _, stripped := strippedHeaders[name]; stripped {
			continue
		}
		header[name] = values
	}
	header.Set("X-Tenant-Id", tenantID)
	header.Set("X-User-Id", util.GetUserIDFromContext(c))
	header.Set("X-Request-Id", util.GetRequestIDFromContext(c))
	return header
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

// OriginMatcher holds the allowed-origin configuration compiled once at
// startup: exact strings plus suffix-wildcard patterns. A bare "*" is never
// honored.
type OriginMatcher struct {
	exact    map[string]struct{}
	suffixes []string
}

func NewOriginMatcher(patterns []string) *OriginMatcher {
	m := &OriginMatcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		switch {
		case p == "*" || p == "":
			logger.Warn("Ignoring bare wildcard in allowed origins")
		case strings.HasPrefix(p, "*."):
			m.suffixes = append(m.suffixes, p[1:]) // keeps the leading dot
		default:
			m.exact[p] = struct{}{}
		}
	}
	return m
}

func (m *OriginMatcher) Match(origin string) bool {
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// CORS applies the origin allowlist to browser callers.
func CORS(matcher *OriginMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && matcher.Match(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-Id, X-Request-Id")
		} else if origin != "" {
			logger.Debug("Origin not allowed", zap.String("origin", origin))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

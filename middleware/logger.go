package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// Logger is a middleware that logs incoming HTTP requests
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.RawQuery)

		// Process request
		c.Next()

		latency := time.Since(start)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				logger.Error("Request error",
					zap.String("path", path),
					zap.String("query", query),
					zap.String("ip", c.ClientIP()),
					zap.String("requestID", util.GetRequestIDFromContext(c)),
					zap.String("error", e),
				)
			}
		} else {
			logger.Info("Request processed",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.String("query", query),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("latency", latency),
				zap.String("ip", c.ClientIP()),
				zap.String("requestID", util.GetRequestIDFromContext(c)),
			)
		}
	}
}

// redactQuery masks the websocket handshake credential so bearer tokens never
// reach the request log.
func redactQuery(raw string) string {
	if raw == "" || !strings.Contains(raw, "token") {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	if _, ok := values["token"]; !ok {
		return raw
	}
	values.Set("token", "REDACTED")
	return values.Encode()
}

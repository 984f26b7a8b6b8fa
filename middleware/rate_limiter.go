package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/ratelimit"
	"github.com/GPT-Gradient/xynergy-core-sub001/util"
)

// RateLimiter enforces a distributed per-identity limit. Authenticated
// requests are keyed by user id, anonymous ones by source address.
func RateLimiter(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := util.GetUserIDFromContext(c)
		if key == "" {
			key = c.ClientIP()
		}

		result := limiter.Allow(c.Request.Context(), key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.Int("limit", result.Limit),
				zap.Time("resetAt", result.ResetAt))
			util.AbortWithError(c, gw_errors.RateLimited(result.ResetAt))
			return
		}
		c.Next()
	}
}

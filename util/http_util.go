// util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	gw_errors "github.com/GPT-Gradient/xynergy-core-sub001/errors"
	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
)

// RespondWithError writes the standard error envelope. Internal detail from
// the wrapped error stays in the server-side log.
func RespondWithError(c *gin.Context, err error) {
	ge := gw_errors.From(err)
	logger.Error(ge.Message,
		zap.Error(ge.Err),
		zap.String("code", ge.Code),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("requestID", GetRequestIDFromContext(c)))
	c.JSON(ge.Status, model.Failure(ge.Code, ge.Message))
}

// AbortWithError is RespondWithError for middleware.
func AbortWithError(c *gin.Context, err error) {
	ge := gw_errors.From(err)
	logger.Warn(ge.Message,
		zap.Error(ge.Err),
		zap.String("code", ge.Code),
		zap.String("path", c.Request.URL.Path),
		zap.String("requestID", GetRequestIDFromContext(c)))
	c.AbortWithStatusJSON(ge.Status, model.Failure(ge.Code, ge.Message))
}

// RespondWithData writes the standard success envelope.
func RespondWithData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, model.Success(data))
}

func GetUserIDFromContext(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		return userID.(string)
	}
	return ""
}

func GetTenantIDFromContext(c *gin.Context) string {
	if tenantID, exists := c.Get("tenantID"); exists {
		return tenantID.(string)
	}
	return ""
}

func GetRequestIDFromContext(c *gin.Context) string {
	if requestID, exists := c.Get("requestID"); exists {
		return requestID.(string)
	}
	return ""
}

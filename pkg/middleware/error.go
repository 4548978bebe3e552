package middleware

import (
	"fundwave/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error a handler attached with c.Error.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		be := errutil.FromError(last.Err)
		if be.Code.IsServerError() {
			zap.L().Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
		} else if be.Err != nil {
			zap.L().Info("request rejected",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.String("code", string(be.Code)),
				zap.Error(be.Err),
			)
		}

		c.AbortWithStatusJSON(be.Code.HTTPStatus(), be.JSON())
	}
}

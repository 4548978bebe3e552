package middleware

import (
	"fundwave/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
)

// Authorize checks the caller's role against the casbin policy for the
// request path and method.
func Authorize(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity(c)
		if id == nil {
			_ = c.Error(errutil.Unauthorized("unauthorized", nil))
			c.Abort()
			return
		}

		ok, err := e.Enforce(id.Role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			_ = c.Error(errutil.Internal("internal server error", err))
			c.Abort()
			return
		}
		if !ok {
			_ = c.Error(errutil.Forbidden("forbidden", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}

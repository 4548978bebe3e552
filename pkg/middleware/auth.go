package middleware

import (
	"strings"

	"fundwave/pkg/auth"
	"fundwave/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Authenticate resolves the caller from the session cookie or a bearer
// header. Requests without a valid credential continue anonymously.
func Authenticate(a auth.Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(cookieName)
		}

		if token != "" {
			if id, err := a.Authenticate(token); err == nil {
				c.Set(identityKey, id)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Identity(c) == nil {
			_ = c.Error(errutil.Unauthorized("unauthorized", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Identity returns the authenticated caller or nil.
func Identity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

func SetIdentity(c *gin.Context, id *auth.Identity) {
	c.Set(identityKey, id)
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

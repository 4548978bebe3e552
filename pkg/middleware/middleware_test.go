package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fundwave/pkg/auth"
	"fundwave/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type fakeAuth map[string]*auth.Identity

func (f fakeAuth) Authenticate(token string) (*auth.Identity, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

func newEnforcer(t *testing.T) *casbin.Enforcer {
	m, err := model.NewModelFromString(`
[request_definition]
r = sub, obj, act
[policy_definition]
p = sub, obj, act
[policy_effect]
e = some(where (p.eft == allow))
[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`)
	require.NoError(t, err)
	e, err := casbin.NewEnforcer(m)
	require.NoError(t, err)
	_, err = e.AddPolicy("admin", "/api/admin/*", "*")
	require.NoError(t, err)
	return e
}

func newEngine(t *testing.T) *gin.Engine {
	users := fakeAuth{
		"user-token":  {UserID: "1", Role: auth.RoleUser},
		"admin-token": {UserID: "2", Role: auth.RoleAdmin},
	}

	r := gin.New()
	r.Use(Error(), Authenticate(users, "accessToken"))
	r.GET("/api/me", RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, Identity(c).UserID)
	})
	r.GET("/api/optional", func(c *gin.Context) {
		if Identity(c) == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, Identity(c).UserID)
	})
	r.PATCH("/api/admin/campaigns/:id/status", RequireAuth(), Authorize(newEnforcer(t)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/api/boom", func(c *gin.Context) {
		_ = c.Error(errutil.Conflict("campaign title already exists", errors.New("duplicate")))
	})
	return r
}

func TestAuthenticateSources(t *testing.T) {
	r := newEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "user-token"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "2", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/optional", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "forged"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "anonymous", w.Body.String())
}

func TestAuthorize(t *testing.T) {
	r := newEngine(t)

	for token, want := range map[string]int{
		"user-token":  http.StatusForbidden,
		"admin-token": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/campaigns/9/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, want, w.Code, token)
	}
}

func TestErrorRendersBaseError(t *testing.T) {
	r := newEngine(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), `"code":"conflict"`)
}

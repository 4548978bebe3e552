package user

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fundwave/pkg/access"
	"fundwave/pkg/auth"
	"fundwave/pkg/config"
	"fundwave/pkg/errutil"
	"fundwave/pkg/httpapi"
	"fundwave/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := &config.Config{AppName: "fundwave"}
	cfg.Session.CookieName = "accessToken"
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Session.TTL = time.Hour
	return cfg
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *auth.JWT) {
	t.Helper()
	db := testutil.NewTestDB(t, &User{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	jwt, err := auth.NewJWT(testConfig())
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node, Issuer: jwt}), db, jwt
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, jwt := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Name: "Fatmata Kamara", Email: " Fatmata@Example.SL ", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.Equal(t, "fatmata@example.sl", u.Email)
	require.Equal(t, RoleUser, u.Role)
	require.Equal(t, KYCUnverified, u.KYCStatus)
	require.NotContains(t, u.PasswordHash, "s3cret-pass")

	_, err = svc.Register(ctx, RegisterRequest{Name: "Other", Email: "fatmata@example.sl", Password: "another-pass"})
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusConflict, be.Status())

	_, _, err = svc.Login(ctx, LoginRequest{Email: "fatmata@example.sl", Password: "wrong-pass"})
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusUnauthorized, be.Status())

	got, session, err := svc.Login(ctx, LoginRequest{Email: "FATMATA@example.sl", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	id, err := jwt.Authenticate(session.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, id.UserID)
	require.Equal(t, "Fatmata Kamara", id.Name)
}

func TestAddContribution(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Name: "Donor", Email: "donor@example.sl", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.AddContribution(ctx, tx, u.ID, 50000)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.AddContribution(ctx, tx, u.ID, 2500)
	}))

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 52500, got.AmountContributed)
}

func TestDisplayName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.Equal(t, "Anonymous", svc.DisplayName(ctx, ""))
	require.Equal(t, "Anonymous", svc.DisplayName(ctx, "missing"))

	u, err := svc.Register(ctx, RegisterRequest{Name: "Ibrahim", Email: "ib@example.sl", Password: "password1"})
	require.NoError(t, err)
	require.Equal(t, "Ibrahim", svc.DisplayName(ctx, u.ID))
}

func TestEnsureAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "Admin", "admin@fundwave.sl", "admin-pass")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, admin.Role)

	again, err := svc.EnsureAdmin(ctx, "Admin", "admin@fundwave.sl", "admin-pass")
	require.NoError(t, err)
	require.Equal(t, admin.ID, again.ID)
}

func TestHandlerLoginSetsCookie(t *testing.T) {
	svc, _, jwt := newTestService(t)
	cfg := testConfig()
	enforcer, err := access.NewEnforcer(cfg)
	require.NoError(t, err)

	router := httpapi.NewRouter(httpapi.RouterParams{Config: cfg, Authenticator: jwt, Enforcer: enforcer})
	RegisterRoutes(router, NewHandler(svc, cfg))

	w := httptest.NewRecorder()
	router.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"name":"Mariama","email":"mariama@example.sl","password":"password1"}`)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"name":"Mariama","email":"not-an-email","password":"short"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `"field":"email"`)

	w = httptest.NewRecorder()
	router.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"mariama@example.sl","password":"password1"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "accessToken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.Engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"email":"mariama@example.sl"`)
	require.NotContains(t, w.Body.String(), "password")
}

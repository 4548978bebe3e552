package httpapi

import (
	"fundwave/pkg/auth"
	"fundwave/pkg/config"
	"fundwave/pkg/health"
	"fundwave/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewRouter),
	fx.Invoke(registerOpsEndpoints),
)

// Router exposes the route groups services mount their handlers on.
type Router struct {
	Engine *gin.Engine
	// API is /api; every request carries an optional identity.
	API *gin.RouterGroup
	// Admin is /api/admin, gated by casbin.
	Admin *gin.RouterGroup
}

type RouterParams struct {
	fx.In
	Config        *config.Config
	Authenticator auth.Authenticator
	Enforcer      *casbin.Enforcer
	Tracer        trace.TracerProvider `optional:"true"`
}

func NewRouter(p RouterParams) *Router {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.Logging(),
		middleware.Error(),
		securityHeaders(),
	)
	if p.Tracer != nil {
		engine.Use(middleware.Tracing(p.Tracer))
	}

	api := engine.Group("/api",
		gzip.Gzip(gzip.DefaultCompression),
		middleware.Authenticate(p.Authenticator, p.Config.Session.CookieName),
	)
	admin := api.Group("/admin", middleware.RequireAuth(), middleware.Authorize(p.Enforcer))

	return &Router{Engine: engine, API: api, Admin: admin}
}

func registerOpsEndpoints(r *Router, h health.HealthService) {
	r.Engine.GET("/healthz", h.Liveness)
	r.Engine.GET("/readyz", h.Readiness)
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

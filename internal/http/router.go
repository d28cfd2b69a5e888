package http

import (
	"log/slog"

	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/http/handlers"
	"github.com/geocoder89/accounthub/internal/http/middlewares"
	"github.com/geocoder89/accounthub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB, auth payloads are tiny

// RouterDeps carries everything the router mounts. Optional pieces
// (limiter, prom, pings) may be nil.
type RouterDeps struct {
	Cfg       config.Config
	Log       *slog.Logger
	Auth      *handlers.AuthHandler
	AuthMW    *middlewares.AuthMiddleware
	Limiter   *middlewares.RateLimiter
	Prom      *observability.Prom
	Registry  *prometheus.Registry
	DBPing    func() error
	RedisPing func() error
	OpenAPI   []byte
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(deps.Log))
	r.Use(otelgin.Middleware("accounthub"))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	// health

	h := handlers.NewHealthHandler(deps.DBPing, deps.RedisPing)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	// ops surface

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/swagger", handlers.SwaggerUI)

	if len(deps.OpenAPI) > 0 {
		spec := deps.OpenAPI
		r.GET("/docs/openapi.yaml", func(ctx *gin.Context) {
			ctx.Data(200, "application/yaml; charset=utf-8", spec)
		})
	}

	// auth routes. The credential endpoints sit behind the limiter;
	// everything under the session is behind RequireAuth.

	throttled := func(fn gin.HandlerFunc, keyFn func(*gin.Context) string) []gin.HandlerFunc {
		if deps.Limiter == nil {
			return []gin.HandlerFunc{fn}
		}

		return []gin.HandlerFunc{deps.Limiter.Middleware(keyFn), fn}
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", throttled(deps.Auth.Register, middlewares.KeyByIP)...)
		authGroup.POST("/login", throttled(deps.Auth.Login, middlewares.KeyByIP)...)
		authGroup.POST("/refresh", throttled(deps.Auth.Refresh, middlewares.KeyByIP)...)

		protected := authGroup.Group("")
		protected.Use(deps.AuthMW.RequireAuth())

		protected.POST("/logout", deps.Auth.Logout)
		protected.GET("/me", deps.Auth.Me)
		protected.PUT("/profile", deps.Auth.UpdateProfile)
	}

	return r
}

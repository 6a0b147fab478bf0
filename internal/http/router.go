package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/geocoder89/accounts/internal/ratelimit"
	"github.com/geocoder89/accounts/internal/resource"
)

// Deps are the collaborators the router wires together. Metrics, Prom and Limiter may be
// nil; the rate limit only applies in production.
type Deps struct {
	Config      config.Config
	Users       *resource.Descriptor
	Credentials handlers.Credentials
	Verifier    middlewares.TokenVerifier
	Checks      map[string]handlers.Check
	Prom        *observability.Prom
	Metrics     http.Handler
	Limiter     ratelimit.Counter
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	production := cfg.IsProduction()

	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = false

	// middleware
	r.Use(middlewares.Recovery(production))
	r.Use(middlewares.RequestID())
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(cfg.AppName))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.ErrorHandler(production))
	r.Use(middlewares.SecurityHeaders(production))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	r.GET("/", handlers.Home(cfg.AppName, cfg.Env))

	api := r.Group("/api")
	if production && d.Limiter != nil && cfg.RateLimitPerHour > 0 {
		limiter := middlewares.NewRateLimiter(d.Limiter, cfg.RateLimitPerHour, time.Hour)
		api.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP))
	}
	api.Use(middlewares.RequireJSON())

	registerUserRoutes(api.Group("/v1/users"), d)

	r.NoRoute(middlewares.NoRoute())

	return r
}

// registerUserRoutes keeps the fixed paths ahead of /:id.
func registerUserRoutes(g *gin.RouterGroup, d Deps) {
	authH := handlers.NewAuthHandler(d.Credentials, d.Config.JWTCookieExpireIn)
	usersH := handlers.NewUsersHandler(d.Users)
	authMW := middlewares.NewAuthMiddleware(d.Verifier)

	requireAuth := authMW.RequireAuth()
	anyAdmin := middlewares.RequireRole(user.RoleSuperAdmin, user.RoleAdmin)
	superAdmin := middlewares.RequireRole(user.RoleSuperAdmin)

	g.POST("/login", authH.Login)
	g.POST("/forget-password", authH.ForgotPassword)
	g.PATCH("/reset-password/:token", authH.ResetPassword)

	g.GET("/trash", requireAuth, anyAdmin, usersH.Trash())

	g.PATCH("/settings/update-password", requireAuth, authH.UpdatePassword)
	g.GET("/me", requireAuth, usersH.Me())
	g.PUT("/me", requireAuth, usersH.UpdateMe())

	g.GET("/:id", requireAuth, anyAdmin, usersH.Get())
	g.DELETE("/:id", requireAuth, superAdmin, usersH.Delete())
	g.PUT("/:id", requireAuth, superAdmin, usersH.Update())
	g.PATCH("/:id", requireAuth, superAdmin, usersH.Update())
	g.POST("/:id/restore", requireAuth, superAdmin, usersH.Restore())

	g.GET("", requireAuth, anyAdmin, usersH.List())
	g.POST("", requireAuth, superAdmin, usersH.Create())
}

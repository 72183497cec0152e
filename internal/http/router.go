package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/coursehub/internal/cache"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/observability"
)

const maxBodyBytes = 1 << 20

// Deps is everything the router wires into handlers. Catalog, Companies and
// Jobs are optional; their routes are only mounted when set.
type Deps struct {
	Log *slog.Logger
	Cfg config.Config

	Accounts  handlers.AccountsService
	Tokens    middlewares.TokenVerifier
	Catalog   handlers.CatalogReader
	Companies handlers.CompaniesReader
	Jobs      handlers.AdminJobsRepo
	Cache     cache.Store

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Health   map[string]handlers.Pinger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.SecurityHeaders(d.Cfg.IsProd()))
	if len(d.Cfg.CORSOrigins) > 0 {
		r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	}
	r.Use(otelgin.Middleware("coursehub-api"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health and metrics
	h := handlers.NewHealthHandler(d.Health)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMw := middlewares.NewAuthMiddleware(d.Tokens)

	// accounts
	accountsHandler := handlers.NewAccountsHandler(d.Accounts, d.Cfg.IsProd())

	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)
	signupLimiter := middlewares.NewRateLimiter(5, time.Minute)

	r.POST("/users", signupLimiter.RateLimiterMiddleware(middlewares.KeyByIP), accountsHandler.SignUp)
	r.POST("/users/lookup", authMw.RequireAuth(), accountsHandler.Lookup)
	r.GET("/me", authMw.RequireAuth(), accountsHandler.Me)

	authGroup := r.Group("/auth")
	authGroup.POST("/signup", signupLimiter.RateLimiterMiddleware(middlewares.KeyByIP), accountsHandler.SignUp)
	authGroup.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), accountsHandler.Login)
	authGroup.POST("/refresh", accountsHandler.Refresh)
	authGroup.POST("/logout", accountsHandler.Logout)

	// catalog
	if d.Catalog != nil {
		catalogHandler := handlers.NewCatalogHandler(d.Catalog, d.Cache, d.Cfg.CatalogCacheTTL, d.Cfg.StoreTimeout, d.Prom)

		r.GET("/courses/levels", catalogHandler.Levels)
		r.GET("/courses/subjects", catalogHandler.Subjects)
		r.GET("/courses", authMw.RequireAuth(), authMw.RequireRole(user.RoleAdmin), catalogHandler.Courses)
	}

	// business management
	if d.Companies != nil {
		companiesHandler := handlers.NewCompaniesHandler(d.Companies, d.Cfg.StoreTimeout)

		companies := r.Group("/companies", authMw.RequireAuth(), authMw.RequireRole(user.RoleAdmin, user.RoleBusinessAdmin))
		companies.GET("/:id", companiesHandler.Get)
		companies.GET("/:id/employees", companiesHandler.Employees)
	}

	// admin
	if d.Jobs != nil {
		adminJobs := handlers.NewAdminJobsHandler(d.Jobs)
		adminLimiter := middlewares.NewRateLimiter(60, time.Minute)

		admin := r.Group("/admin",
			authMw.RequireAuth(),
			authMw.RequireRole(user.RoleAdmin),
			adminLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP),
		)
		admin.GET("/jobs", adminJobs.List)
		admin.GET("/jobs/:id", adminJobs.GetByID)
		admin.POST("/jobs/:id/retry", adminJobs.Retry)
	}

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	return r
}

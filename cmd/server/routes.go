package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/servicehub/internal/admin"
	"github.com/sudo-init-do/servicehub/internal/alerts"
	"github.com/sudo-init-do/servicehub/internal/auth"
	"github.com/sudo-init-do/servicehub/internal/config"
	"github.com/sudo-init-do/servicehub/internal/events"
	"github.com/sudo-init-do/servicehub/internal/jobs"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/logging"
	"github.com/sudo-init-do/servicehub/internal/marketplace"
	mware "github.com/sudo-init-do/servicehub/internal/middleware"
	"github.com/sudo-init-do/servicehub/internal/store"
	"github.com/sudo-init-do/servicehub/internal/user"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

type deps struct {
	store   store.Store
	manager *lifecycle.Manager
	cache   workers.Cache
	hub     *events.Hub
	ready   func(context.Context) error
}

func newServer(cfg *config.Config, d deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = mware.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logging.RequestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	if cfg.RateLimitRPS > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitRPS))))
	}

	// Health
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "servicehub"})
	})
	e.GET("/health", healthz)
	e.GET("/healthz", healthz)
	e.GET("/ready", func(c echo.Context) error {
		if err := d.ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))

	authn := mware.NewAuth(cfg.JWTSecret, d.store)
	users := user.NewHandler(d.store)
	profiles := workers.NewHandler(d.store, d.store, d.cache)
	postings := jobs.NewHandler(d.store)
	requests := marketplace.NewHandler(d.manager)
	inbox := alerts.NewHandler(d.store)
	live := events.NewHandler(d.hub, d.manager)
	oversight := admin.NewHandler(d.store, d.store, d.cache, d.manager)

	// Public routes
	e.GET("/user/:id/profile", users.GetPublicProfile)
	e.GET("/workers", profiles.Discover)
	e.GET("/workers/:id", profiles.GetProfile)
	e.GET("/workers/:id/reviews", profiles.ListReviews)
	e.GET("/jobs", postings.List)
	e.GET("/jobs/:id", postings.Get)

	// Protected routes
	api := e.Group("")
	api.Use(authn.JWTMiddleware)

	api.GET("/auth/me", auth.Me)
	api.PATCH("/user/profile", users.UpdateProfile)

	api.POST("/workers", profiles.UpsertProfile, mware.RequireRoles(lifecycle.RoleWorker))
	api.GET("/workers/me", profiles.GetMyProfile, mware.RequireRoles(lifecycle.RoleWorker))

	api.POST("/jobs", postings.Create)
	api.POST("/jobs/:id/apply", postings.Apply)

	api.POST("/requests", requests.CreateRequest, mware.RequireRoles(lifecycle.RoleCustomer))
	api.GET("/requests", requests.ListRequests)
	api.GET("/requests/:id", requests.GetRequest)
	api.PATCH("/requests/:id/status", requests.UpdateStatus)
	api.POST("/requests/:id/review", requests.CreateReview, mware.RequireRoles(lifecycle.RoleCustomer))
	api.GET("/requests/:id/events", live.RequestEvents)

	api.GET("/notifications", inbox.ListNotifications)
	api.PATCH("/notifications/:id/read", inbox.MarkNotificationRead)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(authn.JWTMiddleware)
	adminGroup.Use(mware.AdminGuard)

	adminGroup.GET("/users", oversight.ListUsers)
	adminGroup.POST("/users/:id/suspend", oversight.SuspendUser)
	adminGroup.POST("/users/:id/activate", oversight.ActivateUser)
	adminGroup.POST("/workers/:id/verify", oversight.VerifyWorker)
	adminGroup.POST("/workers/:id/unverify", oversight.UnverifyWorker)
	adminGroup.GET("/requests", oversight.ListRequests)
	adminGroup.POST("/requests/:id/paid", requests.MarkPaid)

	return e
}

func healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Package server builds the echo instance and its route table.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/localfix/internal/admin"
	"github.com/sudo-init-do/localfix/internal/alerts"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/bookings"
	"github.com/sudo-init-do/localfix/internal/config"
	"github.com/sudo-init-do/localfix/internal/jobs"
	mware "github.com/sudo-init-do/localfix/internal/middleware"
	"github.com/sudo-init-do/localfix/internal/model"
	"github.com/sudo-init-do/localfix/internal/realtime"
	"github.com/sudo-init-do/localfix/internal/reviews"
	"github.com/sudo-init-do/localfix/internal/user"
)

// Handlers are the route groups the server mounts.
type Handlers struct {
	Auth     *auth.Handler
	Jobs     *jobs.Handler
	Bookings *bookings.Handler
	Reviews  *reviews.Handler
	Admin    *admin.Handler
	Alerts   *alerts.Handler
	Realtime *realtime.Feed
	Users    *user.Handler
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func New(cfg config.Config, log *zap.Logger, authn *auth.Authenticator, h Handlers, db Pinger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Basic middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(mware.RequestLogger(log))
	if cfg.AppURL != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{cfg.AppURL},
			AllowCredentials: true,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	required := authn.Middleware
	optional := authn.Optional
	validID := mware.UUIDParam("id")

	// Auth routes with per-IP rate limiting to protect signup from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AuthRateLimit))))
	authGroup.POST("/signup", h.Auth.Signup)
	authGroup.POST("/verify-phone", h.Auth.VerifyPhone, optional)
	authGroup.GET("/me", h.Auth.Me, required)

	// Jobs and applications
	e.GET("/jobs", h.Jobs.ListJobs)
	e.POST("/jobs", h.Jobs.CreateJob, required)
	e.GET("/jobs/mine", h.Jobs.MyJobs, required)
	e.GET("/jobs/:id", h.Jobs.GetJob, optional, validID)
	e.POST("/jobs/:id/close", h.Jobs.CloseJob, required, validID)
	e.POST("/jobs/:id/complete", h.Jobs.CompleteJob, required, validID)
	e.POST("/jobs/:id/applications", h.Jobs.Apply, required, validID)
	e.GET("/jobs/:id/applications", h.Jobs.JobApplications, required, validID)

	apps := e.Group("/job-applications")
	apps.GET("/mine", h.Jobs.MyApplications, required, mware.RequireRoles(model.RoleWorker))
	apps.POST("/:id/accept", h.Jobs.Accept, required, validID)
	apps.POST("/:id/reject", h.Jobs.Reject, required, validID)
	apps.POST("/:id/withdraw", h.Jobs.Withdraw, required, validID)
	apps.POST("/:id/reveal", h.Jobs.Reveal, optional, validID)

	// Services and bookings
	e.GET("/services", h.Bookings.ListServices)
	e.POST("/services", h.Bookings.CreateService, required)
	e.GET("/services/mine", h.Bookings.MyServices, required)
	e.POST("/services/:id/open", h.Bookings.ServiceStatus(model.ServiceOpen), required, validID)
	e.POST("/services/:id/close", h.Bookings.ServiceStatus(model.ServiceClosed), required, validID)
	e.GET("/services/:id/bookings", h.Bookings.ServiceBookings, required, validID)

	e.POST("/bookings", h.Bookings.CreateBooking, required)
	e.GET("/bookings/mine", h.Bookings.MyBookings, required)
	e.POST("/bookings/approve", h.Bookings.Transition(model.BookingApproved), optional)
	e.POST("/bookings/reject", h.Bookings.Transition(model.BookingRejected), optional)
	e.POST("/bookings/complete", h.Bookings.Transition(model.BookingCompleted), optional)
	e.POST("/bookings/cancel", h.Bookings.Transition(model.BookingCancelled), optional)
	e.GET("/bookings/:id", h.Bookings.GetBooking, required, validID)

	// Reviews resolve their own caller; the body token is the last resort.
	e.GET("/reviews", h.Reviews.List)
	e.POST("/reviews", h.Reviews.Create)

	e.GET("/users/:id/profile", h.Users.GetPublicProfile, validID)
	e.PATCH("/users/profile", h.Users.UpdateProfile, required)

	e.GET("/notifications", h.Alerts.List, required)
	e.POST("/notifications/:id/read", h.Alerts.MarkRead, required, validID)

	e.GET("/realtime/worker", h.Realtime.Worker, required, mware.RequireRoles(model.RoleWorker))

	// Admin routes
	adminGroup := e.Group("/admin", required, mware.AdminGuard)
	adminGroup.GET("/stats", h.Admin.Stats)
	adminGroup.GET("/services/pending", h.Admin.PendingServices)
	adminGroup.POST("/services/:id/approve", h.Admin.ApproveService, validID)
	adminGroup.GET("/bookings", h.Admin.Bookings)

	return e
}

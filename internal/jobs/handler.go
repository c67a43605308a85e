package jobs

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// =========================
// CreateJob - client posts a job
// =========================
func (h *Handler) CreateJob(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req NewJob
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.Validation("invalid job payload"))
	}
	job, err := h.svc.Create(c.Request().Context(), s, req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

func (h *Handler) ListJobs(c echo.Context) error {
	jobs, err := h.svc.ListOpen(c.Request().Context())
	if err != nil {
		h.log.Error("list open jobs", zap.Error(err))
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetJob works with or without a session; the poster block depends on it.
func (h *Handler) GetJob(c echo.Context) error {
	s, _ := auth.FromContext(c)
	view, err := h.svc.Get(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) MyJobs(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	jobs, err := h.svc.Mine(c.Request().Context(), s)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, jobs)
}

func (h *Handler) CloseJob(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	job, err := h.svc.Close(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) CompleteJob(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	job, err := h.svc.Complete(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// =========================
// Apply - worker bids on a job
// =========================
func (h *Handler) Apply(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req struct {
		ProposedRate float64 `json:"proposedRate"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.Validation("invalid application payload"))
	}
	app, err := h.svc.Apply(c.Request().Context(), s, c.Param("id"), req.ProposedRate)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, app)
}

func (h *Handler) JobApplications(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	apps, err := h.svc.Applications(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, apps)
}

func (h *Handler) MyApplications(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	apps, err := h.svc.MyApplications(c.Request().Context(), s)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, apps)
}

func (h *Handler) Accept(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	app, err := h.svc.Accept(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		h.log.Info("accept refused", zap.String("application_id", c.Param("id")),
			zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

func (h *Handler) Reject(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	app, err := h.svc.Reject(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

func (h *Handler) Withdraw(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	app, err := h.svc.Withdraw(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// =========================
// Reveal - accepted provider unlocks the poster's contact
// =========================
func (h *Handler) Reveal(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperr.Respond(c, apperr.Validation("Missing application id"))
	}
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	app, already, err := h.svc.Reveal(c.Request().Context(), s, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if already {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "alreadyRevealed": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "application": app})
}

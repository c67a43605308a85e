package bookings

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/model"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) CreateService(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req NewServiceInput
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.Validation("invalid service payload"))
	}
	svc, err := h.svc.CreateService(c.Request().Context(), s, req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, svc)
}

func (h *Handler) ListServices(c echo.Context) error {
	services, err := h.svc.ListServices(c.Request().Context())
	if err != nil {
		h.log.Error("list services", zap.Error(err))
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, services)
}

func (h *Handler) MyServices(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	services, err := h.svc.MyServices(c.Request().Context(), s)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, services)
}

// ServiceStatus returns a handler moving the :id service to status.
func (h *Handler) ServiceStatus(status model.ServiceStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := auth.Require(c)
		if err != nil {
			return apperr.Respond(c, err)
		}
		svc, err := h.svc.SetServiceStatus(c.Request().Context(), s, c.Param("id"), status)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, svc)
	}
}

func (h *Handler) CreateBooking(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req NewBooking
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.Validation("invalid booking payload"))
	}
	view, err := h.svc.Book(c.Request().Context(), s, req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) MyBookings(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	views, err := h.svc.MyBookings(c.Request().Context(), s)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) ServiceBookings(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	views, err := h.svc.ServiceBookings(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) GetBooking(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	view, err := h.svc.Get(c.Request().Context(), s, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// =========================
// Transition - POST /bookings/{approve,reject,complete,cancel} {bookingId}
// =========================
func (h *Handler) Transition(to model.BookingStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			BookingID string `json:"bookingId"`
		}
		if err := c.Bind(&req); err != nil || req.BookingID == "" {
			return apperr.Respond(c, apperr.Validation("bookingId is required"))
		}
		s, err := auth.Require(c)
		if err != nil {
			return apperr.Respond(c, err)
		}
		view, err := h.svc.Transition(c.Request().Context(), s, req.BookingID, to)
		if err != nil {
			h.log.Info("booking transition refused",
				zap.String("booking_id", req.BookingID), zap.String("to", string(to)),
				zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
			return apperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": view})
	}
}

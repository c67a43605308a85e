package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/disclosure"
	"github.com/sudo-init-do/localfix/internal/model"
)

const bookingsLimit = 200

// GET /admin/bookings
func (h *Handler) Bookings(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	ctx := c.Request().Context()
	viewer := disclosure.Viewer{ID: s.UserID, Role: s.Role}

	rows, err := h.store.ListAllBookings(ctx, bookingsLimit)
	if err != nil {
		h.log.Error("admin bookings", zap.Error(err))
		return apperr.Respond(c, apperr.Transport(nil, "could not fetch bookings"))
	}

	services := map[string]model.Service{}
	clients := map[string]*model.Profile{}
	out := make([]disclosure.BookingView, 0, len(rows))
	for _, b := range rows {
		svc, ok := services[b.ServiceID]
		if !ok {
			if svc, err = h.store.GetService(ctx, b.ServiceID); err != nil {
				return apperr.Respond(c, err)
			}
			services[b.ServiceID] = svc
		}
		client, ok := clients[b.ClientID]
		if !ok {
			if p, err := h.store.GetProfile(ctx, b.ClientID); err == nil {
				client = &p
			} else if !apperr.IsNotFound(err) {
				return apperr.Respond(c, err)
			}
			clients[b.ClientID] = client
		}
		out = append(out, disclosure.Booking(b, client, svc, viewer))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

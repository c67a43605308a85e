package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/model"
)

// GET /admin/services/pending
func (h *Handler) PendingServices(c echo.Context) error {
	items, err := h.store.ListServicesByStatus(c.Request().Context(), model.ServicePending)
	if err != nil {
		h.log.Error("pending services", zap.Error(err))
		return apperr.Respond(c, apperr.Transport(nil, "could not fetch services"))
	}
	return c.JSON(http.StatusOK, echo.Map{"services": items})
}

// POST /admin/services/:id/approve
func (h *Handler) ApproveService(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	id := c.Param("id")
	if id == "" {
		return apperr.Respond(c, apperr.Validation("service id required"))
	}
	svc, err := h.services.SetServiceStatus(c.Request().Context(), s, id, model.ServiceApproved)
	if err != nil {
		return apperr.Respond(c, err)
	}
	h.log.Info("service approved", zap.String("service_id", id), zap.String("admin_id", s.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "service approved", "service": svc})
}

package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	st, err := h.store.Stats(c.Request().Context())
	if err != nil {
		h.log.Error("admin stats", zap.Error(err))
		return apperr.Respond(c, apperr.Transport(nil, "could not load stats"))
	}
	return c.JSON(http.StatusOK, st)
}

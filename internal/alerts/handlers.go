package alerts

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/store"
)

type Inbox interface {
	ListNotifications(ctx context.Context, userID string) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

type Handler struct {
	inbox Inbox
	log   *zap.Logger
}

func NewHandler(inbox Inbox, log *zap.Logger) *Handler {
	return &Handler{inbox: inbox, log: log}
}

// List returns the caller's notifications, newest first.
func (h *Handler) List(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	items, err := h.inbox.ListNotifications(c.Request().Context(), s.UserID)
	if err != nil {
		h.log.Error("list notifications", zap.String("user_id", s.UserID), zap.Error(err))
		return apperr.Respond(c, apperr.Transport(nil, "failed to load notifications"))
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

// MarkRead marks one of the caller's notifications read.
func (h *Handler) MarkRead(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	id := c.Param("id")
	if id == "" {
		return apperr.Respond(c, apperr.Validation("missing notification id"))
	}
	if err := h.inbox.MarkNotificationRead(c.Request().Context(), id, s.UserID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}

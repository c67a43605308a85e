// Package user serves public profile pages and lets owners edit their own
// profile.
package user

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
	"github.com/sudo-init-do/localfix/internal/store"
)

type Store interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	UpdateProfile(ctx context.Context, id string, u store.ProfileUpdate) (model.Profile, error)
	RatingSummary(ctx context.Context, revieweeID string) (store.RatingSummary, error)
}

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(store Store, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// PublicProfile never carries email or phone.
type PublicProfile struct {
	model.PublicProfile
	Role    model.Role          `json:"role"`
	Ratings store.RatingSummary `json:"ratings"`
}

// GET /users/:id/profile
func (h *Handler) GetPublicProfile(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Respond(c, apperr.Validation("invalid user id"))
	}

	ctx := c.Request().Context()
	p, err := h.store.GetProfile(ctx, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	ratings, err := h.store.RatingSummary(ctx, id)
	if err != nil {
		h.log.Error("rating summary", zap.String("user_id", id), zap.Error(err))
		return apperr.Respond(c, err)
	}

	return c.JSON(http.StatusOK, PublicProfile{PublicProfile: p.Public(), Role: p.Role, Ratings: ratings})
}

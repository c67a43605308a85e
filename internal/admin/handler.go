// Package admin serves the admin dashboard. Every route is behind AdminGuard.
package admin

import (
	"context"

	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/model"
	"github.com/sudo-init-do/localfix/internal/store"
)

type Store interface {
	Stats(ctx context.Context) (store.Stats, error)
	ListServicesByStatus(ctx context.Context, status model.ServiceStatus) ([]model.Service, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ListAllBookings(ctx context.Context, limit int) ([]model.Booking, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// ServiceStatuses applies a lifecycle-checked service transition.
type ServiceStatuses interface {
	SetServiceStatus(ctx context.Context, sess *auth.Session, id string, to model.ServiceStatus) (model.Service, error)
}

type Handler struct {
	store    Store
	services ServiceStatuses
	log      *zap.Logger
}

func NewHandler(store Store, services ServiceStatuses, log *zap.Logger) *Handler {
	return &Handler{store: store, services: services, log: log}
}

// Package bookings covers worker services and the bookings clients make
// against them.
package bookings

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/disclosure"
	"github.com/sudo-init-do/localfix/internal/lifecycle"
	"github.com/sudo-init-do/localfix/internal/model"
)

type Store interface {
	InsertService(ctx context.Context, v model.Service) (model.Service, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ListBookableServices(ctx context.Context) ([]model.Service, error)
	ListServicesByProvider(ctx context.Context, providerID string) ([]model.Service, error)
	SetServiceStatus(ctx context.Context, id string, from, to model.ServiceStatus) (model.Service, error)

	InsertBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	ListBookingsByClient(ctx context.Context, clientID string) ([]model.Booking, error)
	ListBookingsByService(ctx context.Context, serviceID string) ([]model.Booking, error)
	SetBookingStatus(ctx context.Context, id string, from, to model.BookingStatus) (model.Booking, error)

	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// Notifier tells the other party about a booking status change.
type Notifier interface {
	BookingStatus(ctx context.Context, recipientID, bookingID string, status model.BookingStatus) error
}

type NewServiceInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Duration    string  `json:"duration"`
	Location    *string `json:"location"`
}

type NewBooking struct {
	ServiceID   string  `json:"serviceId"`
	BookingDate string  `json:"bookingDate"`
	Notes       *string `json:"notes"`
}

var bookingDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseBookingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range bookingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("bookingDate must be a date or RFC3339 timestamp")
}

type Service struct {
	store  Store
	notify Notifier
	log    *zap.Logger
}

func NewService(store Store, notify Notifier, log *zap.Logger) *Service {
	return &Service{store: store, notify: notify, log: log}
}

func viewerOf(sess *auth.Session) disclosure.Viewer {
	return disclosure.Viewer{ID: sess.UserID, Role: sess.Role}
}

func (s *Service) CreateService(ctx context.Context, sess *auth.Session, in NewServiceInput) (model.Service, error) {
	if sess.Role != model.RoleWorker {
		return model.Service{}, apperr.Forbidden("only workers can offer services")
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Service{}, apperr.Validation("name is required")
	}
	if in.Price < 0 {
		return model.Service{}, apperr.Validation("price cannot be negative")
	}
	return s.store.InsertService(ctx, model.Service{
		ProviderID:  sess.UserID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Duration:    in.Duration,
		Location:    in.Location,
	})
}

func (s *Service) ListServices(ctx context.Context) ([]model.Service, error) {
	return s.store.ListBookableServices(ctx)
}

func (s *Service) MyServices(ctx context.Context, sess *auth.Session) ([]model.Service, error) {
	return s.store.ListServicesByProvider(ctx, sess.UserID)
}

// SetServiceStatus lets the provider toggle a service open or closed.
func (s *Service) SetServiceStatus(ctx context.Context, sess *auth.Session, id string, to model.ServiceStatus) (model.Service, error) {
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return model.Service{}, err
	}
	parties := lifecycle.ServiceParties(svc, sess.UserID, sess.Role)
	if err := lifecycle.CanTransition(lifecycle.EntityService, string(svc.Status), string(to), parties); err != nil {
		return model.Service{}, err
	}
	return s.store.SetServiceStatus(ctx, id, svc.Status, to)
}

func (s *Service) Book(ctx context.Context, sess *auth.Session, in NewBooking) (disclosure.BookingView, error) {
	if sess.Role != model.RoleClient {
		return disclosure.BookingView{}, apperr.Forbidden("only clients can book services")
	}
	if in.ServiceID == "" || in.BookingDate == "" {
		return disclosure.BookingView{}, apperr.Validation("serviceId and bookingDate are required")
	}
	date, err := parseBookingDate(in.BookingDate)
	if err != nil {
		return disclosure.BookingView{}, err
	}
	svc, err := s.store.GetService(ctx, in.ServiceID)
	if err != nil {
		return disclosure.BookingView{}, err
	}
	if err := lifecycle.CanBook(svc, sess.UserID); err != nil {
		return disclosure.BookingView{}, err
	}
	b, err := s.store.InsertBooking(ctx, model.Booking{
		ServiceID:   svc.ID,
		ClientID:    sess.UserID,
		BookingDate: date,
		Notes:       in.Notes,
	})
	if err != nil {
		return disclosure.BookingView{}, err
	}
	if err := s.notify.BookingStatus(ctx, svc.ProviderID, b.ID, b.Status); err != nil {
		s.log.Warn("booking notification not queued", zap.String("booking_id", b.ID), zap.Error(err))
	}
	return s.view(ctx, b, svc, viewerOf(sess))
}

// view joins the client profile only when the viewer may see it.
func (s *Service) view(ctx context.Context, b model.Booking, svc model.Service, viewer disclosure.Viewer) (disclosure.BookingView, error) {
	var client *model.Profile
	if disclosure.ClientVisible(b, svc, viewer) {
		p, err := s.store.GetProfile(ctx, b.ClientID)
		switch {
		case err == nil:
			client = &p
		case !apperr.IsNotFound(err):
			return disclosure.BookingView{}, err
		}
	}
	return disclosure.Booking(b, client, svc, viewer), nil
}

func (s *Service) views(ctx context.Context, bookings []model.Booking, viewer disclosure.Viewer) ([]disclosure.BookingView, error) {
	services := map[string]model.Service{}
	out := make([]disclosure.BookingView, 0, len(bookings))
	for _, b := range bookings {
		svc, ok := services[b.ServiceID]
		if !ok {
			var err error
			if svc, err = s.store.GetService(ctx, b.ServiceID); err != nil {
				return nil, err
			}
			services[b.ServiceID] = svc
		}
		v, err := s.view(ctx, b, svc, viewer)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) MyBookings(ctx context.Context, sess *auth.Session) ([]disclosure.BookingView, error) {
	bookings, err := s.store.ListBookingsByClient(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, bookings, viewerOf(sess))
}

// ServiceBookings lists the bookings on one service for its provider.
func (s *Service) ServiceBookings(ctx context.Context, sess *auth.Session, serviceID string) ([]disclosure.BookingView, error) {
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.ProviderID != sess.UserID && sess.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only the provider can list bookings for this service")
	}
	bookings, err := s.store.ListBookingsByService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, bookings, viewerOf(sess))
}

func (s *Service) Get(ctx context.Context, sess *auth.Session, id string) (disclosure.BookingView, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return disclosure.BookingView{}, err
	}
	svc, err := s.store.GetService(ctx, b.ServiceID)
	if err != nil {
		return disclosure.BookingView{}, err
	}
	if lifecycle.BookingParties(b, svc, sess.UserID) == 0 && sess.Role != model.RoleAdmin {
		return disclosure.BookingView{}, apperr.Forbidden("Forbidden")
	}
	return s.view(ctx, b, svc, viewerOf(sess))
}

// Transition moves a booking to `to` if the caller drives that edge, then
// tells the other party.
func (s *Service) Transition(ctx context.Context, sess *auth.Session, id string, to model.BookingStatus) (disclosure.BookingView, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return disclosure.BookingView{}, err
	}
	svc, err := s.store.GetService(ctx, b.ServiceID)
	if err != nil {
		return disclosure.BookingView{}, err
	}
	parties := lifecycle.BookingParties(b, svc, sess.UserID)
	if err := lifecycle.CanTransition(lifecycle.EntityBooking, string(b.Status), string(to), parties); err != nil {
		return disclosure.BookingView{}, err
	}
	updated, err := s.store.SetBookingStatus(ctx, id, b.Status, to)
	if err != nil {
		return disclosure.BookingView{}, err
	}

	recipient := b.ClientID
	if to == model.BookingCancelled {
		recipient = svc.ProviderID
	}
	if err := s.notify.BookingStatus(ctx, recipient, id, to); err != nil {
		s.log.Warn("booking notification not queued", zap.String("booking_id", id), zap.Error(err))
	}
	return s.view(ctx, updated, svc, viewerOf(sess))
}

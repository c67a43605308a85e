package reviews

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/store"
)

// Resolver resolves the caller from cookie, bearer, then any extra extractor.
type Resolver interface {
	Resolve(c echo.Context, extra ...auth.Extractor) (*auth.Session, error)
}

type Notifier interface {
	ReviewReceived(ctx context.Context, revieweeID, reviewID string, rating int) error
}

type Handler struct {
	store    Store
	resolver Resolver
	notify   Notifier
	log      *zap.Logger
}

func NewHandler(store Store, resolver Resolver, notify Notifier, log *zap.Logger) *Handler {
	return &Handler{store: store, resolver: resolver, notify: notify, log: log}
}

type CreateRequest struct {
	RevieweeID  string      `json:"revieweeId"`
	JobID       string      `json:"jobId"`
	BookingID   string      `json:"bookingId"`
	Rating      json.Number `json:"rating"`
	Comment     string      `json:"comment"`
	AccessToken string      `json:"accessToken"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// List handles GET /reviews?jobId=&bookingId=&userId=.
func (h *Handler) List(c echo.Context) error {
	f := store.ReviewFilter{
		JobID:     c.QueryParam("jobId"),
		BookingID: c.QueryParam("bookingId"),
		UserID:    c.QueryParam("userId"),
	}
	reviews, err := h.store.ListReviews(c.Request().Context(), f)
	if err != nil {
		h.log.Error("list reviews", zap.Any("filter", f), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch reviews"})
	}
	return c.JSON(http.StatusOK, reviews)
}

// Create handles POST /reviews. The body's accessToken is the last credential tried.
func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug("review body not decoded", zap.Error(err))
		req = CreateRequest{}
	}

	s, err := h.resolver.Resolve(c, auth.BodyAccessToken(req.AccessToken))
	if err != nil {
		return apperr.Respond(c, err)
	}

	ctx := c.Request().Context()
	review, err := Admit(ctx, h.store, Submission{
		ReviewerID: s.UserID,
		RevieweeID: req.RevieweeID,
		Rating:     req.Rating,
		Comment:    optional(req.Comment),
		JobID:      optional(req.JobID),
		BookingID:  optional(req.BookingID),
	})
	if err != nil {
		h.log.Info("review refused", zap.String("reviewer_id", s.UserID), zap.Error(err))
		return apperr.Respond(c, err)
	}

	saved, err := h.store.InsertReview(ctx, review)
	if apperr.IsConflict(err) {
		return apperr.Respond(c, duplicate())
	}
	if err != nil {
		h.log.Error("review insert failed", zap.String("reviewer_id", s.UserID), zap.Error(err))
		details := any(err.Error())
		if se, ok := db.AsStoreError(err); ok {
			details = echo.Map{"code": se.Code, "message": se.Message}
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create review", "details": details})
	}

	if err := h.notify.ReviewReceived(ctx, saved.RevieweeID, saved.ID, saved.Rating); err != nil {
		h.log.Warn("review notification not queued", zap.String("review_id", saved.ID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, saved)
}

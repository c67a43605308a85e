package user

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/store"
)

// UpdateProfileRequest lists the only fields an owner may change. Role and
// email are not editable here.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// PATCH /users/profile
func (h *Handler) UpdateProfile(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.Validation("invalid request"))
	}
	u := store.ProfileUpdate{FullName: trimmed(req.FullName), Phone: trimmed(req.Phone), AvatarURL: trimmed(req.AvatarURL)}
	if u.FullName != nil && *u.FullName == "" {
		return apperr.Respond(c, apperr.Validation("full_name cannot be empty"))
	}
	if u.Phone != nil && *u.Phone == "" {
		return apperr.Respond(c, apperr.Validation("phone cannot be empty"))
	}

	p, err := h.store.UpdateProfile(c.Request().Context(), s.UserID, u)
	if err != nil {
		h.log.Error("update profile", zap.String("user_id", s.UserID), zap.Error(err))
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "profile updated successfully", "profile": p})
}

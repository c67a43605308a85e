package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/baas"
	"github.com/sudo-init-do/localfix/internal/model"
)

type Registrar interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (baas.SignUpResult, error)
	VerifyOTP(ctx context.Context, phone, token string) error
}

type ProfileStore interface {
	ProfileReader
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	SetPhoneVerified(ctx context.Context, id string) error
}

type WelcomeNotifier interface {
	Welcome(ctx context.Context, userID, email, name string) error
}

type Handler struct {
	registrar Registrar
	profiles  ProfileStore
	notify    WelcomeNotifier
	log       *zap.Logger
}

func NewHandler(registrar Registrar, profiles ProfileStore, notify WelcomeNotifier, log *zap.Logger) *Handler {
	return &Handler{registrar: registrar, profiles: profiles, notify: notify, log: log}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// Signup registers with the backend and creates the matching profile.
func (h *Handler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.Validation("invalid request"))
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		return apperr.Respond(c, apperr.Validation("email, password and full_name are required"))
	}
	role := model.Role(req.Role)
	if role != model.RoleClient && role != model.RoleWorker {
		return apperr.Respond(c, apperr.Validation("role must be client or worker"))
	}

	ctx := c.Request().Context()
	res, err := h.registrar.SignUp(ctx, req.Email, req.Password, map[string]any{
		"full_name": req.FullName,
		"role":      req.Role,
		"phone":     req.Phone,
	})
	if err != nil {
		if apperr.IsTransport(err) {
			return apperr.Respond(c, err)
		}
		return apperr.Respond(c, apperr.Validation("%s", messageOf(err)))
	}

	_, err = h.profiles.CreateProfile(ctx, model.Profile{
		ID:       res.User.ID,
		Role:     role,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		h.log.Error("profile creation failed", zap.String("user_id", res.User.ID), zap.Error(err))
		return apperr.Respond(c, apperr.Validation("Failed to create user profile"))
	}

	if err := h.notify.Welcome(ctx, res.User.ID, req.Email, req.FullName); err != nil {
		h.log.Warn("welcome notification not queued", zap.String("user_id", res.User.ID), zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Signup successful",
		"user":    echo.Map{"id": res.User.ID, "email": req.Email},
	})
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone"`
	Token string `json:"token"`
}

// VerifyPhone checks the SMS code with the service key and marks the phone verified.
func (h *Handler) VerifyPhone(c echo.Context) error {
	var req VerifyPhoneRequest
	if err := c.Bind(&req); err != nil || req.Phone == "" || req.Token == "" {
		return apperr.Respond(c, apperr.Validation("Phone and token are required"))
	}
	s, err := Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}

	ctx := c.Request().Context()
	if err := h.registrar.VerifyOTP(ctx, req.Phone, req.Token); err != nil {
		h.log.Info("phone verification failed", zap.String("user_id", s.UserID), zap.Error(err))
		if apperr.IsTransport(err) {
			return apperr.Respond(c, err)
		}
		return apperr.Respond(c, apperr.Validation("%s", messageOf(err)))
	}

	if err := h.profiles.SetPhoneVerified(ctx, s.UserID); err != nil {
		h.log.Error("profile update failed", zap.String("user_id", s.UserID), zap.Error(err))
		return apperr.Respond(c, apperr.Transport(nil, "Failed to update profile"))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Me returns the caller's own profile.
func (h *Handler) Me(c echo.Context) error {
	s, err := Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	p, err := h.profiles.GetProfile(c.Request().Context(), s.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func messageOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

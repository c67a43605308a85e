package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
)

// AdminGuard ensures only admin users can access admin routes
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := c.Get("role").(string)
		if !ok || role == "" {
			return apperr.Respond(c, apperr.Auth("Unauthorized"))
		}
		if model.Role(role) != model.RoleAdmin {
			return apperr.Respond(c, apperr.Forbidden("admin access only"))
		}
		return next(c)
	}
}

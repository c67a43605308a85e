package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
)

// RequireRoles ensures the requester's role is one of the allowed roles.
// Usage: route(..., RequireRoles(model.RoleWorker))
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" {
				return apperr.Respond(c, apperr.Auth("Unauthorized"))
			}
			for _, r := range roles {
				if model.Role(role) == r {
					return next(c)
				}
			}
			return apperr.Respond(c, apperr.Forbidden("access denied"))
		}
	}
}

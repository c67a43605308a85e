package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/localfix/internal/apperr"
)

// UUIDParam rejects requests whose path parameter is not a UUID.
// Usage: e.GET("/jobs/:id", h, UUIDParam("id"))
func UUIDParam(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := uuid.Parse(c.Param(name)); err != nil {
				return apperr.Respond(c, apperr.Validation("invalid %s", name))
			}
			return next(c)
		}
	}
}

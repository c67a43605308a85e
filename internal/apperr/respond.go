package apperr

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// Respond renders err as {"error": ..., "details"?: ...}.
func Respond(c echo.Context, err error) error {
	status := HTTPStatus(err)

	var e *Error
	if !errors.As(err, &e) {
		return c.JSON(status, echo.Map{"error": err.Error()})
	}

	body := echo.Map{"error": e.Message}
	if e.Kind == KindTransport && e.Err != nil {
		body["error"] = e.Message + ": " + e.Err.Error()
	}
	if e.Details != nil {
		body["details"] = e.Details
	}
	return c.JSON(status, body)
}

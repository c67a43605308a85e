package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"state", State("not open"), http.StatusBadRequest},
		{"auth", Auth("no session"), http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"not found", NotFound("job"), http.StatusNotFound},
		{"conflict", Conflict("dup"), http.StatusConflict},
		{"schema drift", SchemaDrift(errors.New("x"), "drift"), http.StatusInternalServerError},
		{"transport", Transport(errors.New("x"), "down"), http.StatusInternalServerError},
		{"foreign", errors.New("boom"), http.StatusInternalServerError},
		{"override", Conflict("dup").WithStatus(http.StatusBadRequest), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestKindHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("accept: %w", Conflict("job no longer open"))

	assert.True(t, IsConflict(err))
	assert.False(t, IsState(err))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, KindTransport, KindOf(errors.New("plain")))
}

func TestRespondShape(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, Respond(c, NotFound("Application not found")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Application not found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, Respond(c, Validation("bad payload").WithDetails(map[string]string{"field": "budget"})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"bad payload","details":{"field":"budget"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, Respond(c, Transport(errors.New("connection refused"), "store unavailable")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"store unavailable: connection refused"}`, rec.Body.String())
}

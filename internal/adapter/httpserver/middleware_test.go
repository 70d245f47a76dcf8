package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jeremyandrews/tag1bot/internal/platform/correlation"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlingMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"store unavailable", fmt.Errorf("%w: get: connection refused", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "Service Unavailable"},
		{"store corrupt", domain.ErrStoreCorrupt, http.StatusServiceUnavailable, "Service Unavailable"},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

			err := ErrorHandlingMiddleware()(func(echo.Context) error { return tt.err })(c)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Error)
		})
	}
}

func TestErrorHandlingMiddleware_PassesThroughHTTPErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	httpErr := echo.NewHTTPError(http.StatusNotFound, "nope")
	err := ErrorHandlingMiddleware()(func(echo.Context) error { return httpErr })(c)

	assert.Same(t, httpErr, err)
}

func TestErrorHandlingMiddleware_NoError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	err := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})(c)

	require.NoError(t, err)
	assert.Equal(t, "success", rec.Body.String())
}

func TestCorrelationMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), httptest.NewRecorder())

	var scope correlation.Scope
	var ok bool
	err := correlationMiddleware(func(c echo.Context) error {
		scope, ok = correlation.FromContext(c.Request().Context())
		return nil
	})(c)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, scope.ID, 8)
}

package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jeremyandrews/tag1bot/internal/platform/correlation"
	"github.com/labstack/echo/v4"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithScope(c.Request().Context(), correlation.Scope{ID: correlation.NewID()})
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// ErrorHandlingMiddleware turns handler errors into JSON responses. Echo's own
// HTTP errors pass through untouched.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if _, ok := errors.AsType[*echo.HTTPError](err); ok {
				return err
			}

			status := statusFor(err)
			attrs := []any{
				"path", c.Request().URL.Path,
				"method", c.Request().Method,
				"status", status,
				"error", err,
			}
			if status == http.StatusServiceUnavailable {
				slog.WarnContext(c.Request().Context(), "Backend unavailable", attrs...)
			} else {
				slog.ErrorContext(c.Request().Context(), "Internal error", attrs...)
			}

			if err := c.JSON(status, errorResponse{Error: http.StatusText(status)}); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/platform/version"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// HealthCheck is one named dependency checked by /health/startup and
// /health/ready.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Status  string  `json:"status"`
	Error   string  `json:"error,omitempty"`
	Latency float64 `json:"latency_ms"`
}

type healthReport struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks"`
}

type livenessReport struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.checksHandler(2*time.Second))
	s.echo.GET("/health/ready", s.checksHandler(5*time.Second))
	s.echo.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, livenessReport{
			Status: "ok",
			Uptime: s.clock.Since(s.startTime).Seconds(),
		})
	})
	s.echo.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, version.Get())
	})
}

// checksHandler runs every check concurrently under a shared deadline and
// reports each one. Any failure makes the response 503.
func (s *Server) checksHandler(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		report := s.checkAll(ctx)
		code := http.StatusOK
		if report.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, report)
	}
}

func (s *Server) checkAll(ctx context.Context) healthReport {
	report := healthReport{Status: "ready", Checks: make(map[string]checkResult, len(s.healthChecks))}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, hc := range s.healthChecks {
		g.Go(func() error {
			start := s.clock.Now()
			err := hc.Check(ctx)
			result := checkResult{Status: "ok", Latency: float64(s.clock.Since(start).Microseconds()) / 1000}
			if err != nil {
				result.Status = "failed"
				result.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[hc.Name] = result
			if err != nil {
				report.Status = "unhealthy"
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

package httpserver

import (
	"net/http"
	"testing"

	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	srv := NewServer("0", metrics.Handler(reg), WithHTTPMetrics(httpMetrics))

	get(t, srv, "/health/live")
	get(t, srv, "/health/live")
	rec := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tag1bot_http_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	assert.Equal(t, 2.0, testutil.ToFloat64(httpMetrics.RequestsTotal.WithLabelValues(http.MethodGet, "/health/live", "200")))
	assert.NotContains(t, get(t, srv, "/metrics").Body.String(), `route="/metrics"`)
}

func TestMetricsEndpoint_NotMountedWithoutHandler(t *testing.T) {
	srv := NewServer("0", nil)

	rec := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	srv := NewServer("0", nil)

	rec := get(t, srv, "/health/live")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

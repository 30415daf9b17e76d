package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portakall/retromeet/internal/observability"
	"github.com/portakall/retromeet/internal/platform/ctxutil"
	"github.com/portakall/retromeet/internal/platform/logger"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen *ctxutil.TraceData
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/api/projects/:id", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("echoes supplied ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/projects/3", nil)
		req.Header.Set(headerRequestID, "req-1")
		req.Header.Set(headerTraceID, "trace-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.NotNil(t, seen)
		assert.Equal(t, "req-1", seen.RequestID)
		assert.Equal(t, "trace-1", seen.TraceID)
		assert.Equal(t, "req-1", w.Header().Get(headerRequestID))
		assert.Equal(t, "trace-1", w.Header().Get(headerTraceID))
	})

	t.Run("generates missing ids", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/projects/3", nil))

		require.NotNil(t, seen)
		assert.NotEmpty(t, seen.RequestID)
		assert.NotEmpty(t, seen.TraceID)
		assert.Equal(t, seen.RequestID, w.Header().Get(headerRequestID))
	})
}

func TestMetricsLabelsStreamsAndRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := observability.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m), RequestLogger(logger.NewNop()))
	r.GET("/api/projects/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/projects/:id/events", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/api/projects/1", "/api/projects/1/events", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	for _, want := range []string{
		`rm_api_requests_total{method="GET",route="/api/projects/:id",status="200"} 1.000000`,
		`rm_api_requests_total{method="GET",route="/api/projects/:id/events",status="stream"} 1.000000`,
		`rm_api_requests_total{method="GET",route="unmatched",status="404"} 1.000000`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestMetricsNilPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/portakall/retromeet/internal/observability"
)

// Metrics records request latency per matched route. Event streams stay open
// for the life of the subscription, so they are labelled "stream" instead of
// their status code to keep them out of the latency buckets of regular calls.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		if isEventStream(c) {
			status = "stream"
		}
		m.ObserveAPI(c.Request.Method, routeLabel(c), status, time.Since(start))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func isEventStream(c *gin.Context) bool {
	return strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")
}

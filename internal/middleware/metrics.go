package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bus-dispatch-api/internal/service"
)

const unmatchedPath = "unmatched"

// Metrics observes dispatch API traffic per route template. Requests that
// match no route share one label so assignment and request ids never become
// label values. Routes listed in skip, such as the scrape and probe endpoints,
// are not observed.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.FullPath()]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedPath
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

package middleware

import (
	"context"
	"strconv"
	"time"

	awspkg "github.com/AriMathi1/Fitness-app-server/pkg/aws"
	"github.com/gin-gonic/gin"
)

// HTTPMetrics is the part of *pkg/aws.MetricsClient the middleware uses.
type HTTPMetrics interface {
	IsEnabled() bool
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, d time.Duration, dimensions map[string]string) error
}

type requestSample struct {
	dims     map[string]string
	status   int
	duration time.Duration
}

// MetricsMiddleware reports request count, latency and error class to
// CloudWatch off the request path.
func MetricsMiddleware(metrics HTTPMetrics, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil || !metrics.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// Route templates keep payment ids out of the dimensions.
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		sample := requestSample{
			status:   c.Writer.Status(),
			duration: time.Since(start),
			dims: map[string]string{
				"Service": serviceName,
				"Method":  c.Request.Method,
				"Path":    route,
				"Status":  statusClass(c.Writer.Status()),
			},
		}
		go sample.send(metrics)
	}
}

func (s requestSample) send(metrics HTTPMetrics) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = metrics.RecordCount(ctx, awspkg.MetricHTTPRequests, s.dims)
	_ = metrics.RecordLatency(ctx, awspkg.MetricHTTPLatency, s.duration, s.dims)

	if s.status < 400 {
		return
	}
	_ = metrics.RecordCount(ctx, awspkg.MetricHTTPErrors, s.dims)
	if s.status >= 500 {
		_ = metrics.RecordCount(ctx, awspkg.MetricHTTP5xx, s.dims)
	} else {
		_ = metrics.RecordCount(ctx, awspkg.MetricHTTP4xx, s.dims)
	}
}

// statusClass maps 404 to "4xx" and so on.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels use
// the registered route (e.g. /api/v1/recordings/:id/audio) rather than the
// raw path to keep cardinality bounded. Request sizes are tracked because
// uploads carry audio.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// sizeBuckets spans JSON replies up to multi-minute audio files.
var sizeBuckets = prometheus.ExponentialBuckets(256, 4, 10) // 256B .. 64MiB

var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recorder",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "recorder",
		Subsystem: "http",
		Name:      "requests_inflight",
		Help:      "HTTP requests currently being served.",
	})

	httpReqSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recorder",
		Subsystem: "http",
		Name:      "request_size_bytes",
		Help:      "Declared HTTP request body sizes.",
		Buckets:   sizeBuckets,
	}, []string{"method", "route"})

	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recorder",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response body sizes.",
		Buckets:   sizeBuckets,
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, httpRespSize)
}

// Metrics records count, latency, in-flight and body sizes per route.
// Unmatched requests are labelled "unmatched".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, route).Observe(float64(n))
		}
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(n))
		}
	}
}

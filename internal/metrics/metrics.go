// Package metrics exposes Prometheus instrumentation for the intake
// pipeline and the HTTP layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LeadsReceived counts leads persisted per source.
	LeadsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_received_total",
			Help: "Total number of raw leads persisted",
		},
		[]string{"source"},
	)

	// LeadsDuplicate counts leads that terminated as duplicates.
	LeadsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_duplicate_total",
			Help: "Total number of leads flagged as duplicates",
		},
		[]string{"source"},
	)

	// LeadsRejected counts validation rejections per source and reason.
	LeadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_rejected_total",
			Help: "Total number of leads rejected during phone validation",
		},
		[]string{"source", "reason"},
	)

	// PipelineFailures counts pipeline aborts after lead creation.
	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_pipeline_failures_total",
			Help: "Total number of pipeline executions that failed",
		},
		[]string{"source"},
	)

	// SyncPublished counts queue entries pushed to the broker by outcome.
	SyncPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_published_total",
			Help: "Total number of sync queue entries published",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// HTTP records request counts and latencies per route.
func HTTP() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

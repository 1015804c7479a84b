/*
Package monitoring provides Prometheus metrics collection.

All collectors live under the platform_ prefix: HTTP request metrics,
intent counts and durations by action and outcome, audit append
counters, and kernel gauges (open handles, lock state).

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain metrics
	metrics.RecordIntent("write", "ALLOW", elapsed)
	metrics.SetHandlesOpen(3)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring

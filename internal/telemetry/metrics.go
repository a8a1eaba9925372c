// Package telemetry provides application-level observability for the sales
// pipeline service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<SP_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped by a Prometheus server every 15–60 seconds.
// It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Deal lifecycle counters (creations, status and stage transitions)
//   - Task and activity counters
//   - Analytics cache hit/miss counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/deals/:deal_id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as deal or organization IDs.  Domain counters
// are labelled by enum values (status, stage, activity type) only, never by
// tenant or entity identifiers.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/salespipe/salespipe/internal/safego"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/deals/:deal_id),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and
// exponential-ish buckets from 5 ms to 30 s.  Use histogram_quantile to compute
// latency percentiles.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Deal lifecycle metrics — recorded by the deal service.
//
// DealsCreatedTotal is a plain Counter incremented once per deal created.
//
// DealStatusTransitionsTotal is a CounterVec with labels {from, to} incremented
// on every successful status change.  Both labels are drawn from the closed
// status enum, so cardinality is bounded at 4x4.
//
// Example PromQL queries:
//   - Win rate (1 d):  sum(rate(deal_status_transitions_total{to="won"}[1d])) / sum(rate(deal_status_transitions_total{to=~"won|lost"}[1d]))
//
// DealStageTransitionsTotal is the stage counterpart, labelled {from, to}.
// Backward transitions (admin corrections) show up as counts where the "to"
// stage precedes the "from" stage in pipeline order.
var (
	DealsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deals_created_total",
			Help: "Total number of deals created.",
		},
	)

	DealStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_status_transitions_total",
			Help: "Total number of deal status changes, by previous and new status.",
		},
		[]string{"from", "to"},
	)

	DealStageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_stage_transitions_total",
			Help: "Total number of deal stage changes, by previous and new stage.",
		},
		[]string{"from", "to"},
	)
)

// TasksCreatedTotal is a plain Counter incremented once per follow-up task
// created against a deal.
//
// ActivitiesRecordedTotal is a CounterVec with label {type} ("comment",
// "status_changed", "stage_changed", "task_created") incremented for every
// entry appended to a deal's activity trail, whether user- or system-authored.
var (
	TasksCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_created_total",
			Help: "Total number of tasks created.",
		},
	)

	ActivitiesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_recorded_total",
			Help: "Total number of activity log entries recorded, by activity type.",
		},
		[]string{"type"},
	)
)

// AnalyticsCacheTotal is a CounterVec with label {result} ("hit" or "miss")
// incremented on every analytics read.  Cache backend failures count as misses.
//
// Example PromQL queries:
//   - Hit ratio (5 m):  sum(rate(analytics_cache_total{result="hit"}[5m])) / sum(rate(analytics_cache_total[5m]))
var AnalyticsCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analytics_cache_total",
		Help: "Total number of analytics cache lookups, by result (hit or miss).",
	},
	[]string{"result"},
)

// AuthFailuresTotal is a CounterVec with label {reason} ("bad_credentials",
// "invalid_token") incremented on rejected authentication attempts.  A spike is
// a useful credential-stuffing signal when combined with the rate limiter.
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Total number of rejected authentication attempts, by reason.",
	},
	[]string{"reason"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after the database connection is established in main.go.
func StartDBStatsCollector(db *sql.DB) {
	safego.Go(func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	})
}

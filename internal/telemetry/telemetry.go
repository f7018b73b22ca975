// Package telemetry exposes Prometheus metrics for graph builds, metric
// computation, child reconciliation and geometry refreshes.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hikster"

// Geometry refresh outcomes
const (
	RefreshOK      = "ok"
	RefreshError   = "error"
	RefreshDropped = "dropped"
)

var (
	// graphBuildDuration measures topology graph builds
	graphBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "build_duration_seconds",
		Help:      "Time to load trail sections and build the topology graph",
		Buckets:   prometheus.DefBuckets,
	})

	graphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "edges",
		Help:      "Number of edges in the last built graph",
	})

	// metricsComputed counts trail activity recomputations.
	// Labels: outcome (known, unknown)
	metricsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metrics",
		Name:      "computed_total",
		Help:      "Trail activity duration/difficulty computations",
	}, []string{"outcome"})

	// reconcileOps counts child rows touched by reconciliation.
	// Labels: child, op (kept, updated, created, deleted, ignored)
	reconcileOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "operations_total",
		Help:      "Child rows kept, updated, created, deleted or ignored by reconciliation",
	}, []string{"child", "op"})

	// reconcileFailures counts reconciliations that aborted.
	// Labels: child
	reconcileFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "failures_total",
		Help:      "Reconciliations that returned an error",
	}, []string{"child"})

	// geometryRefreshes counts post-commit geometry refreshes.
	// Labels: status (ok, error, dropped)
	geometryRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geometry",
		Name:      "refreshes_total",
		Help:      "Trail geometry refreshes by outcome",
	}, []string{"status"})

	// httpDuration measures API requests.
	// Labels: route (mux path template), method, code
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"route", "method", "code"})
)

// ObserveGraphBuild records one graph build
func ObserveGraphBuild(edges int, d time.Duration) {
	graphBuildDuration.Observe(d.Seconds())
	graphEdges.Set(float64(edges))
}

// ObserveMetrics records one computed trail activity
func ObserveMetrics(known bool) {
	outcome := "unknown"
	if known {
		outcome = "known"
	}
	metricsComputed.WithLabelValues(outcome).Inc()
}

// ReconcileCounts is the size of each part of a reconciliation log
type ReconcileCounts struct {
	Kept, Updated, Created, Deleted, Ignored int
}

// ObserveReconcile records a finished reconciliation of one child type
func ObserveReconcile(child string, c ReconcileCounts, err error) {
	if err != nil {
		reconcileFailures.WithLabelValues(child).Inc()
		return
	}
	reconcileOps.WithLabelValues(child, "kept").Add(float64(c.Kept))
	reconcileOps.WithLabelValues(child, "updated").Add(float64(c.Updated))
	reconcileOps.WithLabelValues(child, "created").Add(float64(c.Created))
	reconcileOps.WithLabelValues(child, "deleted").Add(float64(c.Deleted))
	reconcileOps.WithLabelValues(child, "ignored").Add(float64(c.Ignored))
}

// ObserveGeometryRefresh records a refresh outcome
func ObserveGeometryRefresh(status string) {
	geometryRefreshes.WithLabelValues(status).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

type codeRecorder struct {
	http.ResponseWriter
	code int
}

func (r *codeRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware times requests by their mux route template
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, req)

		route := "unmatched"
		if r := mux.CurrentRoute(req); r != nil {
			if tmpl, err := r.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpDuration.WithLabelValues(route, req.Method, strconv.Itoa(rec.code)).Observe(time.Since(start).Seconds())
	})
}

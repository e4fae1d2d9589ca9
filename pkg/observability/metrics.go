package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Graph build metrics
	GraphBuildsTotal      *prometheus.CounterVec
	GraphBuildDuration    prometheus.Histogram
	ManifestFetchesTotal  *prometheus.CounterVec
	ManifestFetchDuration prometheus.Histogram

	// Graph shape, labelled by workspace
	GraphNodes          *prometheus.GaugeVec
	GraphEdges          *prometheus.GaugeVec
	GraphCrossRepoLinks *prometheus.GaugeVec
	GraphCycles         *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depgraph_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "depgraph_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		GraphBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depgraph_graph_builds_total",
				Help: "Total number of dependency graph builds",
			},
			[]string{"status"},
		),
		GraphBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "depgraph_graph_build_duration_seconds",
				Help:    "Dependency graph build duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ManifestFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depgraph_manifest_fetches_total",
				Help: "Total number of manifest fetches",
			},
			[]string{"status"},
		),
		ManifestFetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "depgraph_manifest_fetch_duration_seconds",
				Help:    "Manifest fetch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		GraphNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "depgraph_graph_nodes",
				Help: "Number of nodes in the last graph built for a workspace",
			},
			[]string{"workspace"},
		),
		GraphEdges: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "depgraph_graph_edges",
				Help: "Number of edges in the last graph built for a workspace",
			},
			[]string{"workspace"},
		),
		GraphCrossRepoLinks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "depgraph_graph_cross_repo_links",
				Help: "Number of cross-repository edges in the last graph built for a workspace",
			},
			[]string{"workspace"},
		),
		GraphCycles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "depgraph_graph_cycles",
				Help: "Number of dependency cycles by severity in the last analysis of a workspace",
			},
			[]string{"workspace", "severity"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GraphBuildsTotal,
		m.GraphBuildDuration,
		m.ManifestFetchesTotal,
		m.ManifestFetchDuration,
		m.GraphNodes,
		m.GraphEdges,
		m.GraphCrossRepoLinks,
		m.GraphCycles,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by their mux route template to bound cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

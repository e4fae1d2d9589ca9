package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.GraphBuildsTotal.WithLabelValues("success").Inc()
	metrics.GraphNodes.WithLabelValues("ws").Set(4)
	metrics.GraphCycles.WithLabelValues("ws", "high").Set(1)

	if got := testutil.ToFloat64(metrics.GraphBuildsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("builds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.GraphNodes.WithLabelValues("ws")); got != 4 {
		t.Errorf("nodes = %v, want 4", got)
	}

	count, err := testutil.GatherAndCount(registry, "depgraph_graph_cycles")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count != 1 {
		t.Errorf("cycle series = %d, want 1", count)
	}
}

func TestNewMetricsDoubleRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/workspaces/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest("GET", "/workspaces/"+id+"/summary", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/workspaces/{id}/summary", "404"))
	if got != 2 {
		t.Errorf("requests labelled by route template = %v, want 2", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.ManifestFetchesTotal.WithLabelValues("error").Add(3)

	server := httptest.NewServer(MetricsHandler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `depgraph_manifest_fetches_total{status="error"} 3`) {
		t.Errorf("metrics output missing fetch counter:\n%s", body)
	}
}

package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/repositories/r1", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/repositories/r1", "418"))
	if count != 1 {
		t.Errorf("Expected 1 request counted, got %v", count)
	}
}

func TestRecordPermissionCheck(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordPermissionCheck("Image", "Read", true, 3*time.Millisecond)
	metrics.RecordPermissionCheck("Image", "Read", false, 2*time.Millisecond)
	metrics.RecordPermissionCheck("Image", "Admin", false, time.Millisecond)

	allowed := testutil.ToFloat64(metrics.PermissionChecksTotal.WithLabelValues("Image", "Read", "allowed"))
	denied := testutil.ToFloat64(metrics.PermissionChecksTotal.WithLabelValues("Image", "Read", "denied"))
	if allowed != 1 || denied != 1 {
		t.Errorf("Expected 1 allowed and 1 denied, got %v/%v", allowed, denied)
	}
}

func TestSetDBConnections(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.SetDBConnections(3, 7)

	if got := testutil.ToFloat64(metrics.DBConnectionsActive); got != 3 {
		t.Errorf("Expected 3 active connections, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsIdle); got != 7 {
		t.Errorf("Expected 7 idle connections, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.CacheHitsTotal.Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from metrics handler, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "minervadb_decision_cache_hits_total 1") {
		t.Errorf("Expected cache hit counter in exposition, got:\n%s", rec.Body.String())
	}
}

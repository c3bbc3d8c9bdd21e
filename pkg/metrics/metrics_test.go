package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler(t *testing.T) {
	gauge := promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "storefront_metrics_test_gauge",
		Help: "Gauge registered by the metrics handler test",
	})
	gauge.Set(3)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "# HELP storefront_metrics_test_gauge") {
		t.Error("Expected registered gauge in output")
	}
	if !strings.Contains(body, "storefront_metrics_test_gauge 3") {
		t.Error("Expected gauge value in output")
	}
}

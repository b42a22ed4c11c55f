package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !bytes.Contains(scrape(t), []byte("lowkeyllama_http_requests_total")) {
		t.Fatalf("expected lowkeyllama_http_requests_total in metrics")
	}
}

// The label must be the chi pattern, not the raw URL path.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/items/{id}", http.MethodGet, "418"))
	if got < 1 {
		t.Fatalf("expected pattern-labelled counter, got %v", got)
	}
}

func TestIncrementRejected(t *testing.T) {
	before := testutil.ToFloat64(rejectedTotal.WithLabelValues("unspecified"))
	incrementRejected("")
	if after := testutil.ToFloat64(rejectedTotal.WithLabelValues("unspecified")); after < before+1 {
		t.Fatalf("expected unspecified reason to increment: before=%v after=%v", before, after)
	}
	b415 := testutil.ToFloat64(rejectedTotal.WithLabelValues("content_type"))
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString("{}"))
	NewMux(&mockService{}).ServeHTTP(httptest.NewRecorder(), req)
	if got := testutil.ToFloat64(rejectedTotal.WithLabelValues("content_type")); got < b415+1 {
		t.Fatalf("415 not counted")
	}
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	RecordPrediction(25 * time.Millisecond)
	RecordCacheMiss()
	RecordEventConsumed()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, name := range []string{
		"meditriage_predictions_total",
		"meditriage_prediction_failures_total",
		"meditriage_cache_misses_total",
		"meditriage_events_consumed_total",
		"meditriage_prediction_latency_micros_sum",
	} {
		if !strings.Contains(text, "# TYPE "+name+" counter") {
			t.Errorf("missing counter %s in exposition", name)
		}
	}
}

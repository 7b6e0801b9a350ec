package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Counters for the triage pipeline, exposed in Prometheus text format
// on /metrics.
var (
	predictionsTotal    int64
	predictionFailures  int64
	encodingFailures    int64
	inferenceFailures   int64
	cacheHits           int64
	cacheMisses         int64
	eventsConsumed      int64
	latencyMicrosTotal  int64
	latencyObservations int64
)

func RecordPrediction(elapsed time.Duration) {
	atomic.AddInt64(&predictionsTotal, 1)
	atomic.AddInt64(&latencyMicrosTotal, elapsed.Microseconds())
	atomic.AddInt64(&latencyObservations, 1)
}

func RecordFailure() {
	atomic.AddInt64(&predictionFailures, 1)
}

func RecordEncodingFailure() {
	atomic.AddInt64(&encodingFailures, 1)
}

func RecordInferenceFailure() {
	atomic.AddInt64(&inferenceFailures, 1)
}

func RecordCacheHit() {
	atomic.AddInt64(&cacheHits, 1)
}

func RecordCacheMiss() {
	atomic.AddInt64(&cacheMisses, 1)
}

func RecordEventConsumed() {
	atomic.AddInt64(&eventsConsumed, 1)
}

// Handler serves the counters in Prometheus exposition format.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeCounter(w, "meditriage_predictions_total", "Total triage predictions computed.", atomic.LoadInt64(&predictionsTotal))
		writeCounter(w, "meditriage_prediction_failures_total", "Predictions that ended in an error.", atomic.LoadInt64(&predictionFailures))
		writeCounter(w, "meditriage_encoding_failures_total", "Predictions rejected for unencodable input.", atomic.LoadInt64(&encodingFailures))
		writeCounter(w, "meditriage_inference_failures_total", "Predictions rejected by the model layer.", atomic.LoadInt64(&inferenceFailures))
		writeCounter(w, "meditriage_cache_hits_total", "Prediction cache hits.", atomic.LoadInt64(&cacheHits))
		writeCounter(w, "meditriage_cache_misses_total", "Prediction cache misses.", atomic.LoadInt64(&cacheMisses))
		writeCounter(w, "meditriage_events_consumed_total", "Visit events consumed from Kafka.", atomic.LoadInt64(&eventsConsumed))
		writeCounter(w, "meditriage_prediction_latency_micros_sum", "Cumulative prediction latency in microseconds.", atomic.LoadInt64(&latencyMicrosTotal))
		writeCounter(w, "meditriage_prediction_latency_count", "Number of latency observations.", atomic.LoadInt64(&latencyObservations))
	}
}

func writeCounter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

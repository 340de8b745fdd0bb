// Package metrics holds the Prometheus collectors shared by the extraction
// stages and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pantry"

var (
	imagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_processed_total",
			Help:      "Images processed, by terminal state",
		},
		[]string{"state"}, // done, skipped
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage for one image",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	ocrEngineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_engine_errors_total",
			Help:      "OCR engine failures that degraded to empty output",
		},
		[]string{"engine"},
	)

	ocrFragments = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_fragments",
			Help:      "Fragments produced per image by each engine",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"engine"},
	)

	categorizerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categorizer_requests_total",
			Help:      "Categorization requests by outcome",
		},
		[]string{"outcome"}, // ok, none, error, timeout
	)

	categorizerCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categorizer_cache_total",
			Help:      "Categorization cache lookups",
		},
		[]string{"result"}, // hit, miss, shared
	)

	classifierDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_decisions_total",
			Help:      "Fallback classifications by decision",
		},
		[]string{"decision"}, // accepted, rejected, unavailable
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active websocket connections",
		},
	)
)

// RecordImage counts an image that reached a terminal state.
func RecordImage(state string) {
	imagesProcessed.WithLabelValues(state).Inc()
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordOCRError counts a degraded engine call.
func RecordOCRError(engine string) {
	ocrEngineErrors.WithLabelValues(engine).Inc()
}

// ObserveOCRFragments records the number of fragments an engine produced.
func ObserveOCRFragments(engine string, n int) {
	ocrFragments.WithLabelValues(engine).Observe(float64(n))
}

// RecordCategorization counts a categorization outcome.
func RecordCategorization(outcome string) {
	categorizerRequests.WithLabelValues(outcome).Inc()
}

// RecordCacheHit counts a cache hit.
func RecordCacheHit() { categorizerCache.WithLabelValues("hit").Inc() }

// RecordCacheMiss counts a cache miss.
func RecordCacheMiss() { categorizerCache.WithLabelValues("miss").Inc() }

// RecordCacheShared counts a request answered by an in-flight duplicate.
func RecordCacheShared() { categorizerCache.WithLabelValues("shared").Inc() }

// RecordClassifierDecision counts a fallback decision.
func RecordClassifierDecision(decision string) {
	classifierDecisions.WithLabelValues(decision).Inc()
}

// Package metrics provides Prometheus metrics for the capture pipeline.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dualcam"

// Transition results.
const (
	ResultOK       = "ok"
	ResultFallback = "fallback"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

var (
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Session reconfigurations by label and result",
	}, []string{"label", "result"})

	dualFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dual_fallbacks_total",
		Help:      "Dual-device setups that fell back to a single device",
	}, []string{"reason"})

	recordings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recordings_total",
		Help:      "Completed recordings by mode",
	}, []string{"mode"})

	mergeJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merge_jobs_total",
		Help:      "Background merge jobs by result",
	}, []string{"result"})

	mergeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "merge_duration_seconds",
		Help:      "Wall time spent composing merged clips",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by operation and status code",
	}, []string{"operation", "code"})

	sessionMode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_mode",
		Help:      "Active devices: 0 stopped, 1 single, 2 dual",
	})
)

// RecordTransition counts a reconfiguration outcome.
func RecordTransition(label, result string) {
	transitions.WithLabelValues(label, result).Inc()
}

// RecordDualFallback counts a fallback to single-device operation.
func RecordDualFallback(reason string) {
	dualFallbacks.WithLabelValues(reason).Inc()
}

// RecordRecording counts a completed recording. mode is "single" or "dual".
func RecordRecording(mode string) {
	recordings.WithLabelValues(mode).Inc()
}

// RecordMerge counts a merge job outcome and its wall time.
func RecordMerge(result string, seconds float64) {
	mergeJobs.WithLabelValues(result).Inc()
	if result == ResultOK {
		mergeSeconds.Observe(seconds)
	}
}

// RecordHTTPRequest counts an API request.
func RecordHTTPRequest(operation string, code int) {
	httpRequests.WithLabelValues(operation, strconv.Itoa(code)).Inc()
}

// SetSessionMode sets the number of active capture devices.
func SetSessionMode(devices int) {
	sessionMode.Set(float64(devices))
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}

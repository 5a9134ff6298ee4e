package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(ocrRunsTotal, ocrLatencyMs)
}

var (
	ocrRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_runs_total",
			Help: "OCR invocations by engine and success.",
		},
		[]string{"engine", "success"},
	)

	ocrLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_latency_ms",
			Help:    "OCR latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 60000},
		},
		[]string{"engine"},
	)
)

func ObserveOCR(engine string, elapsed time.Duration, success bool) {
	ocrRunsTotal.WithLabelValues(norm(engine), boolLabel(success)).Inc()
	ocrLatencyMs.WithLabelValues(norm(engine)).Observe(float64(elapsed.Milliseconds()))
}

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry       *prometheus.Registry
	registryOnce   sync.Once
	metricsEnabled = true

	// Cleaning metrics
	CleaningRequestsTotal   *prometheus.CounterVec
	CleaningDuration        *prometheus.HistogramVec
	StageProcessingTime     *prometheus.HistogramVec
	StageFallbacksTotal     *prometheus.CounterVec
	SamplesTrimmedTotal     prometheus.Counter
	ChannelsProcessedTotal  prometheus.Counter

	// Analysis metrics
	AnalysisRequestsTotal *prometheus.CounterVec
	AnalysisDuration      prometheus.Histogram
	QualityScore          prometheus.Histogram
)

// Init initializes all metrics collectors and registers them with a
// dedicated registry. Safe to call multiple times.
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		CleaningRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioclean_cleaning_requests_total",
				Help: "Total number of cleaning requests by outcome",
			},
			[]string{"status"},
		)

		CleaningDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audioclean_cleaning_duration_seconds",
				Help:    "Wall-clock time spent cleaning a buffer",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"channels"},
		)

		StageProcessingTime = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audioclean_stage_processing_seconds",
				Help:    "Processing time per pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"stage"},
		)

		StageFallbacksTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioclean_stage_fallbacks_total",
				Help: "Times a best-effort stage returned its input unmodified",
			},
			[]string{"stage"},
		)

		SamplesTrimmedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "audioclean_samples_trimmed_total",
				Help: "Samples removed by silence trimming",
			},
		)

		ChannelsProcessedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "audioclean_channels_processed_total",
				Help: "Total audio channels run through the pipeline",
			},
		)

		AnalysisRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioclean_analysis_requests_total",
				Help: "Total number of analysis requests by outcome",
			},
			[]string{"status"},
		)

		AnalysisDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "audioclean_analysis_duration_seconds",
				Help:    "Wall-clock time spent analyzing a buffer",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		)

		QualityScore = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "audioclean_quality_score",
				Help:    "Distribution of computed quality scores (0-100)",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		)

		registry.MustRegister(
			CleaningRequestsTotal,
			CleaningDuration,
			StageProcessingTime,
			StageFallbacksTotal,
			SamplesTrimmedTotal,
			ChannelsProcessedTotal,
			AnalysisRequestsTotal,
			AnalysisDuration,
			QualityScore,
		)

		if logger != nil {
			logger.Debug("Metrics collectors registered")
		}
	})
}

// SetEnabled turns metric recording on or off globally
func SetEnabled(enabled bool) {
	metricsEnabled = enabled
}

// Handler returns an HTTP handler serving the metrics registry, for the
// enclosing service to mount wherever it exposes metrics.
func Handler() http.Handler {
	if registry == nil {
		Init(nil)
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveStage records processing time for a single pipeline stage
func ObserveStage(stage string, elapsed time.Duration) {
	if !metricsEnabled || StageProcessingTime == nil {
		return
	}
	StageProcessingTime.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordStageFallback counts a best-effort stage fallback
func RecordStageFallback(stage string) {
	if !metricsEnabled || StageFallbacksTotal == nil {
		return
	}
	StageFallbacksTotal.WithLabelValues(stage).Inc()
}

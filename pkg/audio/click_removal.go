package audio

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"audioclean/pkg/metrics"
	"audioclean/pkg/warnings"
)

// ClickRemover repairs impulsive outliers (clicks and pops) in a single
// channel. A sample is treated as a click when it deviates from its local
// rolling median by more than thresholdSigma times the channel's standard
// deviation; flagged samples are replaced by the local median.
//
// This is a best-effort cosmetic stage: degenerate input is returned
// unmodified rather than failing the request.
type ClickRemover struct {
	logger         *logrus.Logger
	windowSeconds  float64
	thresholdSigma float64
	warnings       *warnings.Collector
}

// NewClickRemover creates a click removal stage
func NewClickRemover(logger *logrus.Logger, windowSeconds, thresholdSigma float64, collector *warnings.Collector) *ClickRemover {
	return &ClickRemover{
		logger:         logger,
		windowSeconds:  windowSeconds,
		thresholdSigma: thresholdSigma,
		warnings:       collector,
	}
}

// Process returns a same-length channel with clicks repaired
func (c *ClickRemover) Process(samples []float64, sampleRate int) []float64 {
	window := int(math.Round(float64(sampleRate) * c.windowSeconds))
	if window%2 == 0 {
		window++
	}
	if window < 1 {
		window = 1
	}

	if len(samples) < 3 || window >= len(samples) {
		c.fallback("input too short for median filtering", len(samples))
		return samples
	}

	sigma := stat.StdDev(samples, nil)
	if sigma == 0 || math.IsNaN(sigma) {
		c.fallback("degenerate channel statistics", len(samples))
		return samples
	}
	threshold := c.thresholdSigma * sigma

	medians := rollingMedian(samples, window)

	out := make([]float64, len(samples))
	repaired := 0
	for i, s := range samples {
		if math.Abs(s-medians[i]) > threshold {
			out[i] = medians[i]
			repaired++
		} else {
			out[i] = s
		}
	}

	if repaired > 0 {
		c.logger.WithFields(logrus.Fields{
			"stage":    StageClickRemoval,
			"repaired": repaired,
			"window":   window,
		}).Debug("Repaired impulsive samples")
	}

	return out
}

func (c *ClickRemover) fallback(reason string, samples int) {
	if c.warnings != nil {
		c.warnings.Record(StageClickRemoval, warnings.SeverityLow, reason,
			map[string]interface{}{"samples": samples})
	}
	metrics.RecordStageFallback(StageClickRemoval)
}

// rollingMedian computes the centered rolling median with the signal
// mirrored at both boundaries, so the filter never reads out of bounds.
func rollingMedian(samples []float64, window int) []float64 {
	n := len(samples)
	half := window / 2
	medians := make([]float64, n)
	scratch := make([]float64, window)

	for i := 0; i < n; i++ {
		for w := 0; w < window; w++ {
			j := i - half + w
			if j < 0 {
				j = -j - 1
			} else if j >= n {
				j = 2*n - 1 - j
			}
			scratch[w] = samples[j]
		}
		sort.Float64s(scratch)
		medians[i] = scratch[window/2]
	}

	return medians
}

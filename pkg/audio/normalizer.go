package audio

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Normalizer scales a channel so its peak magnitude hits a target level
// (dBFS) without clipping. Stateless and single pass.
type Normalizer struct {
	logger       *logrus.Logger
	targetPeakDB float64
}

// NewNormalizer creates a peak normalization stage
func NewNormalizer(logger *logrus.Logger, targetPeakDB float64) *Normalizer {
	return &Normalizer{
		logger:       logger,
		targetPeakDB: targetPeakDB,
	}
}

// Process returns the channel scaled to the target peak. An all-zero
// channel is returned unchanged.
func (n *Normalizer) Process(samples []float64) []float64 {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}

	if peak == 0 {
		return samples
	}

	targetPeak := dbToLinear(n.targetPeakDB)
	gain := targetPeak / peak

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = clampUnit(s * gain)
	}

	n.logger.WithFields(logrus.Fields{
		"stage":   StageNormalization,
		"peak":    peak,
		"gain_db": linearToDB(gain),
	}).Debug("Normalized channel")

	return out
}

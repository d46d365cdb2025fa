package audio

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"audioclean/pkg/errors"
)

// Suppressor is the external noise-reduction capability the pipeline
// invokes. Implementations must return a signal of the same length as
// the input. Strength is the proportion of estimated noise to subtract,
// in [0, 1]; the engine never calls a Suppressor with strength 0.
type Suppressor interface {
	Suppress(signal []float64, sampleRate int, strength float64) ([]float64, error)
}

// ConcurrentSuppressor marks a Suppressor implementation that is safe to
// call from multiple goroutines at once. The engine serializes calls into
// any Suppressor that does not implement this.
type ConcurrentSuppressor interface {
	Suppressor
	ConcurrentSafe() bool
}

// spectralFloorRatio bounds how far below its original value a bin's
// magnitude may be pushed, which limits musical-noise artifacts.
const spectralFloorRatio = 0.02

// SpectralSuppressor is a stationary spectral-subtraction noise reducer:
// it estimates a per-bin noise profile from the quietest decile of STFT
// frames and subtracts a strength-scaled multiple of it from every frame,
// reconstructing with the original phase.
//
// The implementation is stateless per call and safe for concurrent use.
type SpectralSuppressor struct {
	logger    *logrus.Logger
	transform *stft
}

// NewSpectralSuppressor creates the default noise suppression capability
func NewSpectralSuppressor(logger *logrus.Logger, frameSize, hopSize int) *SpectralSuppressor {
	return &SpectralSuppressor{
		logger:    logger,
		transform: newSTFT(frameSize, hopSize),
	}
}

// ConcurrentSafe reports that concurrent calls are allowed
func (sp *SpectralSuppressor) ConcurrentSafe() bool {
	return true
}

// Suppress implements the Suppressor interface
func (sp *SpectralSuppressor) Suppress(signal []float64, sampleRate int, strength float64) ([]float64, error) {
	if strength < 0 || strength > 1 {
		return nil, errors.Wrap(errors.ErrNoiseSuppressionFailed, "strength out of range",
			map[string]interface{}{"strength": strength})
	}
	if len(signal) == 0 {
		return nil, errors.Wrap(errors.ErrNoiseSuppressionFailed, "empty signal")
	}
	if strength == 0 {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out, nil
	}

	// stft instances are not concurrency-safe; take a private one per call
	transform := newSTFT(sp.transform.frameSize, sp.transform.hopSize)

	magnitudes, phases := transform.analyze(signal)
	profile := noiseProfile(magnitudes)

	for _, mag := range magnitudes {
		for k := range mag {
			floor := mag[k] * spectralFloorRatio
			mag[k] -= strength * profile[k]
			if mag[k] < floor {
				mag[k] = floor
			}
		}
	}

	out := transform.synthesize(magnitudes, phases, len(signal))

	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrap(errors.ErrNoiseSuppressionFailed, "non-finite sample after reconstruction")
		}
	}

	if sp.logger != nil {
		sp.logger.WithFields(logrus.Fields{
			"stage":    StageNoiseSuppression,
			"frames":   len(magnitudes),
			"strength": strength,
		}).Debug("Applied spectral noise suppression")
	}

	return out, nil
}

// noiseProfile estimates the stationary noise spectrum as the per-bin
// mean magnitude over the quietest decile of frames.
func noiseProfile(magnitudes [][]float64) []float64 {
	frames := len(magnitudes)
	bins := len(magnitudes[0])

	type frameEnergy struct {
		index  int
		energy float64
	}

	energies := make([]frameEnergy, frames)
	for t, mag := range magnitudes {
		sum := 0.0
		for _, m := range mag {
			sum += m * m
		}
		energies[t] = frameEnergy{index: t, energy: sum}
	}
	sort.Slice(energies, func(i, j int) bool { return energies[i].energy < energies[j].energy })

	quiet := frames / 10
	if quiet < 1 {
		quiet = 1
	}

	profile := make([]float64, bins)
	for _, fe := range energies[:quiet] {
		for k, m := range magnitudes[fe.index] {
			profile[k] += m
		}
	}
	for k := range profile {
		profile[k] /= float64(quiet)
	}

	return profile
}

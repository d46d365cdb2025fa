package audio

import (
	"math"

	"github.com/sirupsen/logrus"

	"audioclean/pkg/metrics"
	"audioclean/pkg/warnings"
)

// echoSubtractionBase scales the per-lag magnitude subtraction; the
// effective fraction is echoSubtractionBase * reductionFactor per lag.
const echoSubtractionBase = 0.1

// EchoReducer attenuates closely-trailing echo energy in the spectral
// domain. For every frame it subtracts a small fraction of the magnitude
// of each of the preceding frames (up to maxLagFrames back) and
// reconstructs the signal with the original phase. This approximates
// suppression of late reflections; it is not a full dereverberation.
//
// Best-effort stage: any degenerate condition returns the input unchanged.
type EchoReducer struct {
	logger          *logrus.Logger
	transform       *stft
	reductionFactor float64
	maxLagFrames    int
	warnings        *warnings.Collector
}

// NewEchoReducer creates an echo reduction stage
func NewEchoReducer(logger *logrus.Logger, frameSize, hopSize int, reductionFactor float64, maxLagFrames int, collector *warnings.Collector) *EchoReducer {
	return &EchoReducer{
		logger:          logger,
		transform:       newSTFT(frameSize, hopSize),
		reductionFactor: reductionFactor,
		maxLagFrames:    maxLagFrames,
		warnings:        collector,
	}
}

// Process returns a same-length channel with echo tails attenuated
func (e *EchoReducer) Process(samples []float64) []float64 {
	if len(samples) == 0 {
		return samples
	}

	magnitudes, phases := e.transform.analyze(samples)
	frames := len(magnitudes)
	if frames < 2 {
		// Nothing trails anything; reconstruction would only add framing error
		return samples
	}

	maxLag := e.maxLagFrames
	if maxLag > frames-1 {
		maxLag = frames - 1
	}

	fraction := echoSubtractionBase * e.reductionFactor
	bins := len(magnitudes[0])

	for lag := 1; lag <= maxLag; lag++ {
		for t := lag; t < frames; t++ {
			earlier := magnitudes[t-lag]
			current := magnitudes[t]
			for k := 0; k < bins; k++ {
				current[k] -= fraction * earlier[k]
			}
		}
	}

	// Clamp after all lags have been subtracted
	for t := 0; t < frames; t++ {
		for k := 0; k < bins; k++ {
			if magnitudes[t][k] < 0 {
				magnitudes[t][k] = 0
			}
		}
	}

	out := e.transform.synthesize(magnitudes, phases, len(samples))

	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			e.fallback("non-finite sample after reconstruction", len(samples))
			return samples
		}
	}

	e.logger.WithFields(logrus.Fields{
		"stage":  StageEchoReduction,
		"frames": frames,
		"lags":   maxLag,
	}).Debug("Reduced echo tails")

	return out
}

func (e *EchoReducer) fallback(reason string, samples int) {
	if e.warnings != nil {
		e.warnings.Record(StageEchoReduction, warnings.SeverityLow, reason,
			map[string]interface{}{"samples": samples})
	}
	metrics.RecordStageFallback(StageEchoReduction)
}

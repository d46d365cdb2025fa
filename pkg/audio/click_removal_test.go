package audio

import (
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioclean/pkg/warnings"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sine(n int, freq float64, amplitude float64, sampleRate int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestClickRemoverRepairsSpike(t *testing.T) {
	logger := testLogger()
	remover := NewClickRemover(logger, 0.002, 3.0, warnings.NewCollector(logger))

	signal := sine(44100, 440, 0.1, 44100)
	signal[1000] = 1.0
	signal[20000] = -1.0

	out := remover.Process(signal, 44100)
	require.Len(t, out, len(signal))

	// Spikes must be pulled back to the local median, which for a low
	// amplitude sine stays within the amplitude envelope.
	assert.LessOrEqual(t, math.Abs(out[1000]), 0.11, "positive spike not repaired")
	assert.LessOrEqual(t, math.Abs(out[20000]), 0.11, "negative spike not repaired")
}

func TestClickRemoverLeavesCleanSignalAlone(t *testing.T) {
	logger := testLogger()
	remover := NewClickRemover(logger, 0.002, 3.0, warnings.NewCollector(logger))

	signal := sine(44100, 440, 0.1, 44100)
	out := remover.Process(signal, 44100)

	require.Len(t, out, len(signal))
	for i := range signal {
		assert.Equal(t, signal[i], out[i], "sample %d modified in a clean signal", i)
	}
}

func TestClickRemoverShortInputFallback(t *testing.T) {
	logger := testLogger()
	collector := warnings.NewCollector(logger)
	remover := NewClickRemover(logger, 0.002, 3.0, collector)

	signal := []float64{0.1, 0.2}
	out := remover.Process(signal, 44100)

	assert.Equal(t, signal, out, "short input must pass through unchanged")
	assert.Equal(t, 1, collector.Count())
}

func TestClickRemoverConstantSignalFallback(t *testing.T) {
	logger := testLogger()
	collector := warnings.NewCollector(logger)
	remover := NewClickRemover(logger, 0.002, 3.0, collector)

	signal := make([]float64, 1000)
	for i := range signal {
		signal[i] = 0.5
	}

	out := remover.Process(signal, 44100)
	assert.Equal(t, signal, out, "zero variance input must pass through unchanged")
	assert.Equal(t, 1, collector.Count())
}

func TestRollingMedianConstant(t *testing.T) {
	signal := []float64{1, 1, 1, 1, 1, 1, 1}
	medians := rollingMedian(signal, 3)
	for i, m := range medians {
		assert.Equal(t, 1.0, m, "index %d", i)
	}
}

func TestRollingMedianMirroredBoundaries(t *testing.T) {
	signal := []float64{5, 1, 1, 1, 5}
	medians := rollingMedian(signal, 3)

	// At index 0 the window mirrors to {5, 5, 1}
	assert.Equal(t, 5.0, medians[0])
	assert.Equal(t, 1.0, medians[1])
	assert.Equal(t, 1.0, medians[2])
	assert.Equal(t, 1.0, medians[3])
	assert.Equal(t, 5.0, medians[4])
}

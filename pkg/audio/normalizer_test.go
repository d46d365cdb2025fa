package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizerHitsTargetPeak(t *testing.T) {
	normalizer := NewNormalizer(testLogger(), -3)

	signal := sine(44100, 440, 0.25, 44100)
	out := normalizer.Process(signal)
	require.Len(t, out, len(signal))

	peak := 0.0
	for _, v := range out {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	assert.InDelta(t, dbToLinear(-3), peak, 1e-9)
}

func TestNormalizerAttenuatesLoudSignal(t *testing.T) {
	normalizer := NewNormalizer(testLogger(), -3)

	signal := []float64{0.0, 0.95, -0.95, 0.5}
	out := normalizer.Process(signal)

	target := dbToLinear(-3)
	assert.InDelta(t, target, out[1], 1e-9)
	assert.InDelta(t, -target, out[2], 1e-9)
}

func TestNormalizerAllZeroUnchanged(t *testing.T) {
	normalizer := NewNormalizer(testLogger(), -3)

	signal := make([]float64, 1000)
	out := normalizer.Process(signal)

	assert.Len(t, out, len(signal))
	for i, v := range out {
		assert.Equal(t, 0.0, v, "sample %d", i)
	}
}

func TestNormalizerClampsWithinRange(t *testing.T) {
	// A 0 dBFS target amplifies right up to full scale; no sample may
	// escape [-1, 1] regardless of rounding.
	normalizer := NewNormalizer(testLogger(), 0)

	signal := sine(4096, 440, 0.1, 44100)
	out := normalizer.Process(signal)

	for i, v := range out {
		assert.GreaterOrEqual(t, v, -1.0, "sample %d", i)
		assert.LessOrEqual(t, v, 1.0, "sample %d", i)
	}
}

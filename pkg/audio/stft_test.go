package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSTFTNumFrames(t *testing.T) {
	s := newSTFT(2048, 512)

	assert.Equal(t, 0, s.numFrames(0))
	assert.Equal(t, 1, s.numFrames(1))
	assert.Equal(t, 1, s.numFrames(512))
	assert.Equal(t, 2, s.numFrames(513))
	assert.Equal(t, 87, s.numFrames(44100))
}

func TestSTFTNumBins(t *testing.T) {
	assert.Equal(t, 1025, newSTFT(2048, 512).numBins())
	assert.Equal(t, 129, newSTFT(256, 64).numBins())
}

func TestSTFTRoundTrip(t *testing.T) {
	s := newSTFT(2048, 512)

	n := 8192
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/44100)
	}

	magnitudes, phases := s.analyze(signal)
	require.Len(t, magnitudes, s.numFrames(n))
	require.Len(t, magnitudes[0], s.numBins())

	out := s.synthesize(magnitudes, phases, n)
	require.Len(t, out, n)

	// Reconstruction without spectral modification must recover the input.
	// The outermost samples carry negligible window weight, so compare the
	// interior only.
	for i := s.hopSize; i < n-s.frameSize; i++ {
		assert.InDelta(t, signal[i], out[i], 1e-8, "sample %d", i)
	}
}

func TestSTFTSynthesizeLength(t *testing.T) {
	s := newSTFT(256, 64)

	signal := make([]float64, 1000)
	for i := range signal {
		signal[i] = math.Sin(float64(i) / 10)
	}

	magnitudes, phases := s.analyze(signal)

	short := s.synthesize(magnitudes, phases, 500)
	assert.Len(t, short, 500)

	long := s.synthesize(magnitudes, phases, 2000)
	assert.Len(t, long, 2000)
}

func TestSTFTFrameRMS(t *testing.T) {
	s := newSTFT(2048, 512)

	signal := make([]float64, 8192)
	for i := range signal {
		signal[i] = 0.5
	}

	rms := s.frameRMS(signal)
	require.Len(t, rms, s.numFrames(len(signal)))
	for t2, r := range rms {
		assert.InDelta(t, 0.5, r, 1e-12, "frame %d", t2)
	}
}

func TestHannWindow(t *testing.T) {
	w := hannWindow(8)
	require.Len(t, w, 8)
	assert.InDelta(t, 0.0, w[0], 1e-12)
	assert.InDelta(t, 0.0, w[7], 1e-12)

	w = hannWindow(1)
	assert.Equal(t, []float64{1}, w)
}

package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioclean/pkg/warnings"
)

func TestEchoReducerZeroInputStaysZero(t *testing.T) {
	logger := testLogger()
	reducer := NewEchoReducer(logger, 2048, 512, 0.5, 10, warnings.NewCollector(logger))

	signal := make([]float64, 8192)
	out := reducer.Process(signal)

	require.Len(t, out, len(signal))
	for i, v := range out {
		assert.Equal(t, 0.0, v, "sample %d", i)
		assert.False(t, math.IsNaN(v))
	}
}

func TestEchoReducerPreservesLength(t *testing.T) {
	logger := testLogger()
	reducer := NewEchoReducer(logger, 2048, 512, 0.5, 10, warnings.NewCollector(logger))

	signal := sine(44100, 440, 0.5, 44100)
	out := reducer.Process(signal)

	require.Len(t, out, len(signal))
	for i, v := range out {
		require.False(t, math.IsNaN(v), "NaN at sample %d", i)
		require.False(t, math.IsInf(v, 0), "Inf at sample %d", i)
	}
}

func TestEchoReducerEmptyInput(t *testing.T) {
	logger := testLogger()
	reducer := NewEchoReducer(logger, 2048, 512, 0.5, 10, warnings.NewCollector(logger))

	out := reducer.Process(nil)
	assert.Empty(t, out)
}

func TestEchoReducerSingleFramePassthrough(t *testing.T) {
	logger := testLogger()
	reducer := NewEchoReducer(logger, 2048, 512, 0.5, 10, warnings.NewCollector(logger))

	// Fewer samples than one hop yields a single frame, which has no
	// preceding frame to subtract.
	signal := sine(500, 440, 0.5, 44100)
	out := reducer.Process(signal)

	assert.Equal(t, signal, out)
}

func TestEchoReducerAttenuatesTrailingEnergy(t *testing.T) {
	logger := testLogger()
	reducer := NewEchoReducer(logger, 2048, 512, 1.0, 10, warnings.NewCollector(logger))

	// Sustained energy trails itself frame after frame, so cumulative
	// subtraction must lower the overall level.
	signal := sine(44100, 440, 0.8, 44100)
	out := reducer.Process(signal)
	require.Len(t, out, len(signal))

	energyIn := 0.0
	energyOut := 0.0
	for i := range signal {
		energyIn += signal[i] * signal[i]
		energyOut += out[i] * out[i]
	}

	assert.Less(t, energyOut, energyIn, "sustained signal energy must drop")
}

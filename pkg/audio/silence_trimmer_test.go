package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioclean/pkg/warnings"
)

func newTestTrimmer(collector *warnings.Collector) *SilenceTrimmer {
	logger := testLogger()
	if collector == nil {
		collector = warnings.NewCollector(logger)
	}
	return NewSilenceTrimmer(logger, 2048, 512, -40, 0.01, collector)
}

func TestSilenceTrimmerRemovesLeadingAndTrailingSilence(t *testing.T) {
	trimmer := newTestTrimmer(nil)

	sampleRate := 44100
	tone := sine(sampleRate, 440, 0.5, sampleRate)

	signal := make([]float64, 3*sampleRate)
	copy(signal[sampleRate:], tone)

	out := trimmer.Process(signal, sampleRate)

	// Frame granularity keeps a little padding around the tone
	duration := float64(len(out)) / float64(sampleRate)
	assert.GreaterOrEqual(t, duration, 1.0, "tone must survive in full")
	assert.LessOrEqual(t, duration, 1.2, "bulk of the silence must go")
}

func TestSilenceTrimmerFadesSplicePoints(t *testing.T) {
	trimmer := newTestTrimmer(nil)

	sampleRate := 44100
	signal := make([]float64, 3*sampleRate)
	copy(signal[sampleRate:], sine(sampleRate, 440, 0.5, sampleRate))

	out := trimmer.Process(signal, sampleRate)
	require.NotEmpty(t, out)

	// The retained span starts and ends on a zero-weight fade ramp
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.0, out[len(out)-1])
}

func TestSilenceTrimmerAllSilentUnchanged(t *testing.T) {
	logger := testLogger()
	collector := warnings.NewCollector(logger)
	trimmer := NewSilenceTrimmer(logger, 2048, 512, -40, 0.01, collector)

	signal := make([]float64, 44100)
	out := trimmer.Process(signal, 44100)

	assert.Len(t, out, len(signal), "an all-silent channel is never emptied")
	assert.Equal(t, 1, collector.Count(), "fallback must be recorded")
}

func TestSilenceTrimmerDetectIntervals(t *testing.T) {
	trimmer := newTestTrimmer(nil)

	sampleRate := 44100
	signal := make([]float64, 3*sampleRate)
	copy(signal[sampleRate:], sine(sampleRate, 440, 0.5, sampleRate))

	intervals := trimmer.DetectIntervals(signal)
	require.Len(t, intervals, 1)

	// Interval boundaries are frame aligned and bracket the tone
	assert.LessOrEqual(t, intervals[0].Start, sampleRate)
	assert.GreaterOrEqual(t, intervals[0].End, 2*sampleRate)
	assert.Greater(t, intervals[0].Start, sampleRate-4096)
	assert.Less(t, intervals[0].End, 2*sampleRate+4096)
}

func TestSilenceTrimmerDetectIntervalsEmptySignal(t *testing.T) {
	trimmer := newTestTrimmer(nil)
	assert.Nil(t, trimmer.DetectIntervals(nil))
	assert.Nil(t, trimmer.DetectIntervals(make([]float64, 8192)))
}

func TestSilenceTrimmerApplySharedIntervals(t *testing.T) {
	trimmer := newTestTrimmer(nil)

	sampleRate := 44100
	left := make([]float64, 2*sampleRate)
	right := make([]float64, 2*sampleRate)
	copy(left, sine(sampleRate, 440, 0.5, sampleRate))
	copy(right[sampleRate:], sine(sampleRate, 880, 0.5, sampleRate))

	// One interval set from the fold keeps channel lengths identical even
	// though the channels are silent at different times.
	intervals := trimmer.DetectIntervals(maxFold([][]float64{left, right}))
	outLeft := trimmer.Apply(left, intervals, sampleRate)
	outRight := trimmer.Apply(right, intervals, sampleRate)

	assert.Equal(t, len(outLeft), len(outRight))
}

func TestMergeIntervals(t *testing.T) {
	merged := mergeIntervals([]Interval{
		{Start: 0, End: 100},
		{Start: 50, End: 150},
		{Start: 150, End: 200},
		{Start: 300, End: 400},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, Interval{Start: 0, End: 200}, merged[0])
	assert.Equal(t, Interval{Start: 300, End: 400}, merged[1])
}

func TestSilenceTrimmerShortPartKeptWithoutFade(t *testing.T) {
	trimmer := newTestTrimmer(nil)

	samples := make([]float64, 1000)
	for i := range samples {
		samples[i] = 0.5
	}

	// Fade is 441 samples at 44.1 kHz; a 500 sample part is too short to
	// fade and must be kept verbatim.
	out := trimmer.Apply(samples, []Interval{{Start: 0, End: 500}}, 44100)
	require.Len(t, out, 500)
	for i, v := range out {
		assert.Equal(t, 0.5, v, "sample %d", i)
	}
}

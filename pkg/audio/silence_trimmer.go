package audio

import (
	"github.com/sirupsen/logrus"

	"audioclean/pkg/metrics"
	"audioclean/pkg/warnings"
)

// Interval is a half-open sample range [Start, End) of non-silent audio
type Interval struct {
	Start int
	End   int
}

// SilenceTrimmer removes spans of near-silence. Detection works on frame
// RMS energy relative to the loudest frame; retained spans are stitched
// together with short linear crossfades so splice points stay inaudible.
//
// Detection and application are split so the engine can detect intervals
// once on a cross-channel fold and apply the identical interval set to
// every channel, keeping channel lengths equal.
type SilenceTrimmer struct {
	logger      *logrus.Logger
	transform   *stft
	thresholdDB float64
	fadeSeconds float64
	warnings    *warnings.Collector
}

// NewSilenceTrimmer creates a silence trimming stage
func NewSilenceTrimmer(logger *logrus.Logger, frameSize, hopSize int, thresholdDB, fadeSeconds float64, collector *warnings.Collector) *SilenceTrimmer {
	return &SilenceTrimmer{
		logger:      logger,
		transform:   newSTFT(frameSize, hopSize),
		thresholdDB: thresholdDB,
		fadeSeconds: fadeSeconds,
		warnings:    collector,
	}
}

// DetectIntervals finds non-silent sample intervals in the reference
// signal. Returns nil when the signal is entirely silent.
func (s *SilenceTrimmer) DetectIntervals(reference []float64) []Interval {
	if len(reference) == 0 {
		return nil
	}

	rms := s.transform.frameRMS(reference)

	peak := 0.0
	for _, r := range rms {
		if r > peak {
			peak = r
		}
	}
	if peak == 0 {
		return nil
	}

	// Threshold is relative to the loudest frame, expressed in dB
	threshold := peak * dbToLinear(s.thresholdDB)

	var intervals []Interval
	inRun := false
	runStart := 0

	for t, r := range rms {
		if r > threshold {
			if !inRun {
				inRun = true
				runStart = t
			}
		} else if inRun {
			inRun = false
			intervals = append(intervals, s.frameRunToInterval(runStart, t-1, len(reference)))
		}
	}
	if inRun {
		intervals = append(intervals, s.frameRunToInterval(runStart, len(rms)-1, len(reference)))
	}

	return mergeIntervals(intervals)
}

// frameRunToInterval converts an inclusive frame run to a sample interval
func (s *SilenceTrimmer) frameRunToInterval(firstFrame, lastFrame, n int) Interval {
	start := firstFrame * s.transform.hopSize
	end := lastFrame*s.transform.hopSize + s.transform.frameSize
	if end > n {
		end = n
	}
	return Interval{Start: start, End: end}
}

// mergeIntervals coalesces overlapping or touching intervals. Frames
// overlap in samples, so adjacent runs can produce overlapping ranges.
func mergeIntervals(intervals []Interval) []Interval {
	if len(intervals) < 2 {
		return intervals
	}

	merged := intervals[:1]
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
		} else {
			merged = append(merged, iv)
		}
	}
	return merged
}

// Apply excises everything outside the intervals and concatenates the
// retained spans with linear crossfades. An empty interval set returns
// the input unchanged; an all-silent channel is never emptied.
func (s *SilenceTrimmer) Apply(samples []float64, intervals []Interval, sampleRate int) []float64 {
	if len(intervals) == 0 {
		s.fallback("no non-silent intervals detected", len(samples))
		return samples
	}

	fade := int(float64(sampleRate) * s.fadeSeconds)

	total := 0
	for _, iv := range intervals {
		total += iv.End - iv.Start
	}

	out := make([]float64, 0, total)
	for _, iv := range intervals {
		part := make([]float64, iv.End-iv.Start)
		copy(part, samples[iv.Start:iv.End])

		// Short spans are kept unfaded; a fade would swallow them whole
		if fade > 1 && len(part) > fade*2 {
			for i := 0; i < fade; i++ {
				ramp := float64(i) / float64(fade-1)
				part[i] *= ramp
				part[len(part)-1-i] *= ramp
			}
		}

		out = append(out, part...)
	}

	trimmed := len(samples) - len(out)
	if trimmed > 0 && metrics.SamplesTrimmedTotal != nil {
		metrics.SamplesTrimmedTotal.Add(float64(trimmed))
	}

	s.logger.WithFields(logrus.Fields{
		"stage":     StageSilenceTrimming,
		"intervals": len(intervals),
		"trimmed":   trimmed,
	}).Debug("Trimmed silence")

	return out
}

// Process detects and applies in one call, for single-channel use
func (s *SilenceTrimmer) Process(samples []float64, sampleRate int) []float64 {
	return s.Apply(samples, s.DetectIntervals(samples), sampleRate)
}

func (s *SilenceTrimmer) fallback(reason string, samples int) {
	if s.warnings != nil {
		s.warnings.Record(StageSilenceTrimming, warnings.SeverityInfo, reason,
			map[string]interface{}{"samples": samples})
	}
	metrics.RecordStageFallback(StageSilenceTrimming)
}

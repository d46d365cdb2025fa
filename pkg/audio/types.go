package audio

import (
	"math"

	"audioclean/pkg/errors"
)

// Stage names used for logging, warnings and metrics labels
const (
	StageNoiseSuppression = "noise_suppression"
	StageClickRemoval     = "click_removal"
	StageEchoReduction    = "echo_reduction"
	StageSilenceTrimming  = "silence_trimming"
	StageNormalization    = "normalization"
)

// AudioBuffer holds decoded PCM audio: one sample slice per channel with
// samples in the range [-1.0, 1.0]. All channels have equal length at
// every pipeline boundary. Decoding from and encoding to container
// formats is the caller's responsibility.
type AudioBuffer struct {
	// Channels holds one ordered sample sequence per channel
	Channels [][]float64

	// SampleRate in Hz
	SampleRate int
}

// NewAudioBuffer creates a buffer from per-channel sample slices
func NewAudioBuffer(sampleRate int, channels ...[]float64) *AudioBuffer {
	return &AudioBuffer{
		Channels:   channels,
		SampleRate: sampleRate,
	}
}

// NumChannels returns the channel count
func (b *AudioBuffer) NumChannels() int {
	return len(b.Channels)
}

// NumSamples returns the per-channel sample count
func (b *AudioBuffer) NumSamples() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer duration in seconds
func (b *AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.NumSamples()) / float64(b.SampleRate)
}

// Validate checks the buffer invariants: positive sample rate, at least
// one channel with at least one sample, and equal channel lengths.
func (b *AudioBuffer) Validate() error {
	if b == nil {
		return errors.ErrInvalidBuffer
	}
	if b.SampleRate <= 0 {
		return errors.Wrap(errors.ErrInvalidBuffer, "sample rate must be positive",
			map[string]interface{}{"sample_rate": b.SampleRate})
	}
	if len(b.Channels) == 0 {
		return errors.Wrap(errors.ErrInvalidBuffer, "buffer has no channels")
	}
	n := len(b.Channels[0])
	for i, ch := range b.Channels {
		if len(ch) != n {
			return errors.Wrap(errors.ErrChannelLengthMismatch, "channel lengths differ",
				map[string]interface{}{"channel": i, "expected": n, "actual": len(ch)})
		}
	}
	if n == 0 {
		return errors.ErrEmptyBuffer
	}
	return nil
}

// Clone returns a deep copy of the buffer
func (b *AudioBuffer) Clone() *AudioBuffer {
	channels := make([][]float64, len(b.Channels))
	for i, ch := range b.Channels {
		channels[i] = make([]float64, len(ch))
		copy(channels[i], ch)
	}
	return &AudioBuffer{Channels: channels, SampleRate: b.SampleRate}
}

// monoFold averages all channels into a single mono signal
func monoFold(channels [][]float64) []float64 {
	if len(channels) == 1 {
		out := make([]float64, len(channels[0]))
		copy(out, channels[0])
		return out
	}

	n := 0
	for _, ch := range channels {
		if len(ch) > n {
			n = len(ch)
		}
	}

	out := make([]float64, n)
	for _, ch := range channels {
		for i, s := range ch {
			out[i] += s
		}
	}
	scale := 1.0 / float64(len(channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// maxFold folds all channels into the per-sample maximum magnitude,
// keeping any channel's activity visible to silence detection.
func maxFold(channels [][]float64) []float64 {
	if len(channels) == 1 {
		out := make([]float64, len(channels[0]))
		copy(out, channels[0])
		return out
	}

	n := 0
	for _, ch := range channels {
		if len(ch) > n {
			n = len(ch)
		}
	}

	out := make([]float64, n)
	for _, ch := range channels {
		for i, s := range ch {
			if math.Abs(s) > math.Abs(out[i]) {
				out[i] = s
			}
		}
	}
	return out
}

// ProcessingOptions selects which cleaning stages run. Construct once and
// do not mutate; the engine only ever reads it.
type ProcessingOptions struct {
	// NoiseReductionStrength is the proportion of estimated noise to
	// subtract, in [0, 1]. Zero disables noise suppression entirely.
	NoiseReductionStrength float64 `json:"noise_reduction_strength"`

	// RemoveClicks enables impulsive click repair
	RemoveClicks bool `json:"remove_clicks"`

	// RemoveSilence enables silent-span excision with crossfades
	RemoveSilence bool `json:"remove_silence"`

	// Normalize enables peak normalization
	Normalize bool `json:"normalize"`

	// ReduceEcho enables spectral echo-tail attenuation
	ReduceEcho bool `json:"reduce_echo"`
}

// Validate checks option ranges
func (o ProcessingOptions) Validate() error {
	if o.NoiseReductionStrength < 0 || o.NoiseReductionStrength > 1 {
		return errors.Wrap(errors.ErrInvalidOptions, "noise reduction strength out of range",
			map[string]interface{}{"noise_reduction_strength": o.NoiseReductionStrength})
	}
	return nil
}

// ProcessingReport summarizes a single cleaning invocation
type ProcessingReport struct {
	OriginalDurationSeconds  float64 `json:"original_duration_seconds"`
	ProcessedDurationSeconds float64 `json:"processed_duration_seconds"`
	SampleRate               int     `json:"sample_rate"`
}

// QualityAssessment is the scored verdict of an analysis
type QualityAssessment struct {
	// Score in 0-100
	Score int `json:"score"`

	// Rating is one of Excellent, Good, Fair, Poor
	Rating string `json:"rating"`

	// Issues lists detected problems in the order they were found
	Issues []string `json:"issues"`
}

// AnalysisReport contains the acoustic metrics computed for a buffer
type AnalysisReport struct {
	DurationSeconds       float64           `json:"duration_seconds"`
	SampleRate            int               `json:"sample_rate"`
	PeakAmplitude         float64           `json:"peak_amplitude"`
	PeakDB                float64           `json:"peak_db"`
	AverageRMS            float64           `json:"average_rms"`
	AverageRMSDB          float64           `json:"average_rms_db"`
	EstimatedNoiseFloorDB float64           `json:"estimated_noise_floor_db"`
	EstimatedSNRDB        float64           `json:"estimated_snr_db"`
	SNRApplicable         bool              `json:"snr_applicable"`
	SilencePercentage     float64           `json:"silence_percentage"`
	SpectralBrightness    float64           `json:"spectral_brightness"`
	ZeroCrossingRate      float64           `json:"zero_crossing_rate"`
	Quality               QualityAssessment `json:"quality_assessment"`
}

// Quality rating labels
const (
	RatingExcellent = "Excellent"
	RatingGood      = "Good"
	RatingFair      = "Fair"
	RatingPoor      = "Poor"
)

// epsilonDB keeps log conversions finite for silent signals
const epsilonDB = 1e-10

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20.0)
}

func linearToDB(linear float64) float64 {
	return 20 * math.Log10(linear+epsilonDB)
}

// clampUnit hard-limits a sample to [-1.0, 1.0]
func clampUnit(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}

package audio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"audioclean/pkg/config"
	"audioclean/pkg/errors"
	"audioclean/pkg/metrics"
)

// Quality issue descriptions
const (
	IssueHighNoise       = "High noise level detected"
	IssueModerateNoise   = "Moderate noise present"
	IssueBackgroundNoise = "Significant background noise"
	IssueLargeSilence    = "Large portions of silence"
	IssueNone            = "No significant issues detected"
)

// AudioAnalyzer computes acoustic metrics and a quality assessment for a
// decoded buffer. Analysis is read-only: the input buffer is never
// modified. Multi-channel buffers are folded to mono first.
type AudioAnalyzer struct {
	logger *logrus.Logger
	cfg    *config.ProcessingConfig
}

// NewAudioAnalyzer creates an analyzer. A nil config selects the defaults.
func NewAudioAnalyzer(logger *logrus.Logger, cfg *config.ProcessingConfig) *AudioAnalyzer {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg == nil {
		cfg = config.DefaultProcessingConfig()
	}

	metrics.Init(logger)

	return &AudioAnalyzer{
		logger: logger,
		cfg:    cfg,
	}
}

// Analyze computes the full analysis report for the buffer
func (a *AudioAnalyzer) Analyze(buffer *AudioBuffer) (*AnalysisReport, error) {
	start := time.Now()

	if err := buffer.Validate(); err != nil {
		metrics.AnalysisRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %w", errors.ErrAnalysisFailed, err)
	}

	requestID := uuid.New().String()
	signal := monoFold(buffer.Channels)
	transform := newSTFT(a.cfg.FrameSize, a.cfg.HopSize)

	report := &AnalysisReport{
		DurationSeconds: buffer.Duration(),
		SampleRate:      buffer.SampleRate,
	}

	// Peak amplitude and silence percentage are sample-level metrics
	peak := 0.0
	silent := 0
	for _, s := range signal {
		abs := math.Abs(s)
		if abs > peak {
			peak = abs
		}
		if abs < a.cfg.SilenceSampleThreshold {
			silent++
		}
	}
	report.PeakAmplitude = peak
	report.PeakDB = linearToDB(peak)
	report.SilencePercentage = float64(silent) / float64(len(signal)) * 100

	// Frame-level energy metrics
	rms := transform.frameRMS(signal)
	report.AverageRMS = stat.Mean(rms, nil)
	report.AverageRMSDB = linearToDB(report.AverageRMS)

	noiseFloor := a.estimateNoiseFloor(rms)
	report.EstimatedNoiseFloorDB = linearToDB(noiseFloor)

	signalPower := 0.0
	for _, r := range rms {
		signalPower += r * r
	}
	signalPower /= float64(len(rms))

	noisePower := noiseFloor * noiseFloor
	if noisePower > 0 {
		report.EstimatedSNRDB = 10 * math.Log10(signalPower/noisePower)
		report.SNRApplicable = true
	}

	report.ZeroCrossingRate = a.zeroCrossingRate(signal, transform)
	report.SpectralBrightness = a.spectralCentroid(signal, transform, buffer.SampleRate)
	report.Quality = a.assessQuality(report, noiseFloor)

	metrics.AnalysisRequestsTotal.WithLabelValues("success").Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	metrics.QualityScore.Observe(float64(report.Quality.Score))

	a.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"duration":   report.DurationSeconds,
		"snr_db":     report.EstimatedSNRDB,
		"score":      report.Quality.Score,
		"rating":     report.Quality.Rating,
	}).Debug("Analysis completed")

	return report, nil
}

// estimateNoiseFloor returns the mean RMS of the quietest decile of
// frames. At least one frame always contributes.
func (a *AudioAnalyzer) estimateNoiseFloor(rms []float64) float64 {
	sorted := make([]float64, len(rms))
	copy(sorted, rms)
	sort.Float64s(sorted)

	quiet := int(float64(len(sorted)) * a.cfg.NoiseFloorQuantile)
	if quiet < 1 {
		quiet = 1
	}

	return stat.Mean(sorted[:quiet], nil)
}

// zeroCrossingRate computes the mean fraction of sign changes per frame
func (a *AudioAnalyzer) zeroCrossingRate(signal []float64, transform *stft) float64 {
	frames := transform.numFrames(len(signal))
	if frames == 0 {
		return 0
	}

	total := 0.0
	for t := 0; t < frames; t++ {
		start := t * transform.hopSize
		end := start + transform.frameSize
		if end > len(signal) {
			end = len(signal)
		}

		crossings := 0
		for i := start + 1; i < end; i++ {
			if (signal[i-1] >= 0) != (signal[i] >= 0) {
				crossings++
			}
		}
		total += float64(crossings) / float64(end-start)
	}

	return total / float64(frames)
}

// spectralCentroid computes the mean frequency-weighted magnitude
// centroid across frames, a proxy for perceived brightness.
func (a *AudioAnalyzer) spectralCentroid(signal []float64, transform *stft, sampleRate int) float64 {
	magnitudes, _ := transform.analyze(signal)
	if len(magnitudes) == 0 {
		return 0
	}

	binWidth := float64(sampleRate) / float64(transform.frameSize)

	sum := 0.0
	counted := 0
	for _, mag := range magnitudes {
		num := 0.0
		den := 0.0
		for k, m := range mag {
			num += float64(k) * binWidth * m
			den += m
		}
		if den > 0 {
			sum += num / den
			counted++
		}
	}

	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

// assessQuality derives the scored verdict from the computed metrics
func (a *AudioAnalyzer) assessQuality(report *AnalysisReport, noiseFloor float64) QualityAssessment {
	score := 100
	var issues []string

	// Inapplicable SNR means zero noise power; treat as unbounded
	snr := math.Inf(1)
	if report.SNRApplicable {
		snr = report.EstimatedSNRDB
	}

	if snr < 20 {
		issues = append(issues, IssueHighNoise)
		score -= 30
	} else if snr < 40 {
		issues = append(issues, IssueModerateNoise)
		score -= 15
	}

	if noiseFloor > 0.05 {
		issues = append(issues, IssueBackgroundNoise)
		score -= 20
	}

	if report.SilencePercentage > 50 {
		issues = append(issues, IssueLargeSilence)
		score -= 10
	}

	if score < 0 {
		score = 0
	}

	var rating string
	switch {
	case score >= 80:
		rating = RatingExcellent
	case score >= 60:
		rating = RatingGood
	case score >= 40:
		rating = RatingFair
	default:
		rating = RatingPoor
	}

	if len(issues) == 0 {
		issues = []string{IssueNone}
	}

	return QualityAssessment{
		Score:  score,
		Rating: rating,
		Issues: issues,
	}
}

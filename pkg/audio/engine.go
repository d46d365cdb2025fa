package audio

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"audioclean/pkg/config"
	"audioclean/pkg/errors"
	"audioclean/pkg/metrics"
	"audioclean/pkg/warnings"
)

// CleaningEngine runs the cleaning pipeline over multi-channel buffers.
// Stage order is fixed: noise suppression, click removal, echo reduction,
// silence trimming, normalization — each gated by ProcessingOptions.
//
// Channels are processed independently on their own goroutines for the
// per-channel stages. Silence detection runs once on a cross-channel fold
// so every channel is trimmed with the identical interval set and channel
// lengths stay equal.
type CleaningEngine struct {
	logger *logrus.Logger
	cfg    *config.ProcessingConfig

	suppressor          Suppressor
	serializeSuppressor bool
	suppressorMu        sync.Mutex

	warnings *warnings.Collector

	clicks     *ClickRemover
	echo       *EchoReducer
	silence    *SilenceTrimmer
	normalizer *Normalizer
}

// NewCleaningEngine creates a cleaning engine. A nil config selects the
// defaults; suppressor may be nil when noise reduction will never be
// requested.
func NewCleaningEngine(logger *logrus.Logger, cfg *config.ProcessingConfig, suppressor Suppressor) *CleaningEngine {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg == nil {
		cfg = config.DefaultProcessingConfig()
	}

	metrics.Init(logger)
	collector := warnings.NewCollector(logger)

	serialize := true
	if cs, ok := suppressor.(ConcurrentSuppressor); ok && cs.ConcurrentSafe() {
		serialize = false
	}

	return &CleaningEngine{
		logger:              logger,
		cfg:                 cfg,
		suppressor:          suppressor,
		serializeSuppressor: serialize,
		warnings:            collector,
		clicks:              NewClickRemover(logger, cfg.ClickWindowSeconds, cfg.ClickThresholdSigma, collector),
		echo:                NewEchoReducer(logger, cfg.FrameSize, cfg.HopSize, cfg.EchoReductionFactor, cfg.EchoMaxLagFrames, collector),
		silence:             NewSilenceTrimmer(logger, cfg.FrameSize, cfg.HopSize, cfg.SilenceThresholdDB, cfg.FadeSeconds, collector),
		normalizer:          NewNormalizer(logger, cfg.TargetPeakDB),
	}
}

// Warnings exposes the engine's warning collector
func (e *CleaningEngine) Warnings() *warnings.Collector {
	return e.warnings
}

// Clean runs the enabled stages over every channel and returns the
// cleaned buffer with a processing report. The input buffer is never
// modified. Channel count is preserved; sample count changes only when
// silence trimming is enabled.
func (e *CleaningEngine) Clean(buffer *AudioBuffer, options ProcessingOptions) (*AudioBuffer, *ProcessingReport, error) {
	start := time.Now()

	if err := buffer.Validate(); err != nil {
		metrics.CleaningRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, err
	}
	if err := options.Validate(); err != nil {
		metrics.CleaningRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, err
	}
	if options.NoiseReductionStrength > 0 && e.suppressor == nil {
		metrics.CleaningRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, errors.Wrap(errors.ErrNoiseSuppressionFailed, "no suppressor configured")
	}

	requestID := uuid.New().String()
	log := e.logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"channels":    buffer.NumChannels(),
		"sample_rate": buffer.SampleRate,
		"samples":     buffer.NumSamples(),
	})
	log.Debug("Cleaning started")

	work := buffer.Clone()

	// Per-channel front half: suppression, click removal, echo reduction
	err := e.forEachChannel(work.Channels, func(idx int, ch []float64) ([]float64, error) {
		if options.NoiseReductionStrength > 0 {
			suppressed, serr := e.suppress(ch, work.SampleRate, options.NoiseReductionStrength)
			if serr != nil {
				return nil, serr
			}
			ch = suppressed
		}
		if options.RemoveClicks {
			ch = e.timedStage(StageClickRemoval, func() []float64 {
				return e.clicks.Process(ch, work.SampleRate)
			})
		}
		if options.ReduceEcho {
			ch = e.timedStage(StageEchoReduction, func() []float64 {
				return e.echo.Process(ch)
			})
		}
		return ch, nil
	})
	if err != nil {
		metrics.CleaningRequestsTotal.WithLabelValues("failed").Inc()
		log.WithError(err).Error("Cleaning failed")
		return nil, nil, fmt.Errorf("%w: %w", errors.ErrCleaningFailed, err)
	}

	// Silence trimming: one interval set for all channels, so lengths
	// cannot diverge between channels of the same buffer.
	if options.RemoveSilence {
		intervals := e.silence.DetectIntervals(maxFold(work.Channels))
		_ = e.forEachChannel(work.Channels, func(idx int, ch []float64) ([]float64, error) {
			return e.timedStage(StageSilenceTrimming, func() []float64 {
				return e.silence.Apply(ch, intervals, work.SampleRate)
			}), nil
		})
	}

	if options.Normalize {
		_ = e.forEachChannel(work.Channels, func(idx int, ch []float64) ([]float64, error) {
			return e.timedStage(StageNormalization, func() []float64 {
				return e.normalizer.Process(ch)
			}), nil
		})
	}

	if len(work.Channels) != buffer.NumChannels() {
		metrics.CleaningRequestsTotal.WithLabelValues("failed").Inc()
		return nil, nil, errors.Wrap(errors.ErrInternalError, "channel count changed during processing",
			map[string]interface{}{"before": buffer.NumChannels(), "after": len(work.Channels)})
	}
	if err := work.Validate(); err != nil {
		metrics.CleaningRequestsTotal.WithLabelValues("failed").Inc()
		return nil, nil, errors.Wrap(err, "buffer invariant violated after processing")
	}

	report := &ProcessingReport{
		OriginalDurationSeconds:  buffer.Duration(),
		ProcessedDurationSeconds: work.Duration(),
		SampleRate:               buffer.SampleRate,
	}

	metrics.CleaningRequestsTotal.WithLabelValues("success").Inc()
	metrics.CleaningDuration.WithLabelValues(strconv.Itoa(buffer.NumChannels())).Observe(time.Since(start).Seconds())
	metrics.ChannelsProcessedTotal.Add(float64(buffer.NumChannels()))

	log.WithFields(logrus.Fields{
		"original_duration":  report.OriginalDurationSeconds,
		"processed_duration": report.ProcessedDurationSeconds,
		"elapsed":            time.Since(start),
	}).Info("Cleaning completed")

	return work, report, nil
}

// suppress invokes the external capability, serializing when the
// implementation is not known to be safe for concurrent calls.
func (e *CleaningEngine) suppress(ch []float64, sampleRate int, strength float64) ([]float64, error) {
	stageStart := time.Now()
	defer func() {
		metrics.ObserveStage(StageNoiseSuppression, time.Since(stageStart))
	}()

	if e.serializeSuppressor {
		e.suppressorMu.Lock()
		defer e.suppressorMu.Unlock()
	}

	out, err := e.suppressor.Suppress(ch, sampleRate, strength)
	if err != nil {
		if errors.Is(err, errors.ErrNoiseSuppressionFailed) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrNoiseSuppressionFailed, err.Error())
	}
	if len(out) != len(ch) {
		return nil, errors.Wrap(errors.ErrNoiseSuppressionFailed, "suppressor changed signal length",
			map[string]interface{}{"expected": len(ch), "actual": len(out)})
	}
	return out, nil
}

// timedStage runs a stage and records its processing time
func (e *CleaningEngine) timedStage(stage string, fn func() []float64) []float64 {
	stageStart := time.Now()
	out := fn()
	metrics.ObserveStage(stage, time.Since(stageStart))
	return out
}

// forEachChannel runs fn over every channel concurrently, bounded by the
// configured channel concurrency. Each goroutine owns its channel slice
// exclusively; the result replaces the channel on success.
func (e *CleaningEngine) forEachChannel(channels [][]float64, fn func(idx int, ch []float64) ([]float64, error)) error {
	var sem chan struct{}
	if e.cfg.MaxConcurrentChannels > 0 {
		sem = make(chan struct{}, e.cfg.MaxConcurrentChannels)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(channels))

	for idx := range channels {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			out, err := fn(idx, channels[idx])
			if err != nil {
				errs[idx] = err
				return
			}
			channels[idx] = out
		}(idx)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"audioclean/pkg/errors"
)

// ProcessingConfig contains the tunable parameters of the cleaning and
// analysis pipeline. Values are fixed at load time; the pipeline never
// mutates them.
type ProcessingConfig struct {
	// Spectral framing shared by echo reduction, silence detection and analysis
	FrameSize int `json:"frame_size" env:"AUDIO_FRAME_SIZE" default:"2048"`
	HopSize   int `json:"hop_size" env:"AUDIO_HOP_SIZE" default:"512"`

	// Click removal
	ClickWindowSeconds  float64 `json:"click_window_seconds" env:"CLICK_WINDOW_SECONDS" default:"0.002"`
	ClickThresholdSigma float64 `json:"click_threshold_sigma" env:"CLICK_THRESHOLD_SIGMA" default:"3.0"`

	// Echo reduction
	EchoReductionFactor float64 `json:"echo_reduction_factor" env:"ECHO_REDUCTION_FACTOR" default:"0.5"`
	EchoMaxLagFrames    int     `json:"echo_max_lag_frames" env:"ECHO_MAX_LAG_FRAMES" default:"10"`

	// Silence trimming
	SilenceThresholdDB float64 `json:"silence_threshold_db" env:"SILENCE_THRESHOLD_DB" default:"-40"`
	FadeSeconds        float64 `json:"fade_seconds" env:"FADE_SECONDS" default:"0.01"`

	// Normalization
	TargetPeakDB float64 `json:"target_peak_db" env:"TARGET_PEAK_DB" default:"-3"`

	// Analysis
	SilenceSampleThreshold float64 `json:"silence_sample_threshold" env:"SILENCE_SAMPLE_THRESHOLD" default:"0.01"`
	NoiseFloorQuantile     float64 `json:"noise_floor_quantile" env:"NOISE_FLOOR_QUANTILE" default:"0.1"`

	// Concurrency bound for per-channel fan-out (0 means one goroutine per channel)
	MaxConcurrentChannels int `json:"max_concurrent_channels" env:"MAX_CONCURRENT_CHANNELS" default:"0"`
}

// DefaultProcessingConfig returns the default processing configuration
func DefaultProcessingConfig() *ProcessingConfig {
	return &ProcessingConfig{
		FrameSize:              2048,
		HopSize:                512,
		ClickWindowSeconds:     0.002,
		ClickThresholdSigma:    3.0,
		EchoReductionFactor:    0.5,
		EchoMaxLagFrames:       10,
		SilenceThresholdDB:     -40,
		FadeSeconds:            0.01,
		TargetPeakDB:           -3,
		SilenceSampleThreshold: 0.01,
		NoiseFloorQuantile:     0.1,
		MaxConcurrentChannels:  0,
	}
}

// Load builds the processing configuration from the environment. A .env
// file is honored when present but its absence is not an error.
func Load(logger *logrus.Logger) (*ProcessingConfig, error) {
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Debug("Loaded environment from .env file")
	}

	cfg := DefaultProcessingConfig()

	cfg.FrameSize = getEnvInt("AUDIO_FRAME_SIZE", cfg.FrameSize)
	cfg.HopSize = getEnvInt("AUDIO_HOP_SIZE", cfg.HopSize)
	cfg.ClickWindowSeconds = getEnvFloat("CLICK_WINDOW_SECONDS", cfg.ClickWindowSeconds)
	cfg.ClickThresholdSigma = getEnvFloat("CLICK_THRESHOLD_SIGMA", cfg.ClickThresholdSigma)
	cfg.EchoReductionFactor = getEnvFloat("ECHO_REDUCTION_FACTOR", cfg.EchoReductionFactor)
	cfg.EchoMaxLagFrames = getEnvInt("ECHO_MAX_LAG_FRAMES", cfg.EchoMaxLagFrames)
	cfg.SilenceThresholdDB = getEnvFloat("SILENCE_THRESHOLD_DB", cfg.SilenceThresholdDB)
	cfg.FadeSeconds = getEnvFloat("FADE_SECONDS", cfg.FadeSeconds)
	cfg.TargetPeakDB = getEnvFloat("TARGET_PEAK_DB", cfg.TargetPeakDB)
	cfg.SilenceSampleThreshold = getEnvFloat("SILENCE_SAMPLE_THRESHOLD", cfg.SilenceSampleThreshold)
	cfg.NoiseFloorQuantile = getEnvFloat("NOISE_FLOOR_QUANTILE", cfg.NoiseFloorQuantile)
	cfg.MaxConcurrentChannels = getEnvInt("MAX_CONCURRENT_CHANNELS", cfg.MaxConcurrentChannels)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"frame_size":     cfg.FrameSize,
			"hop_size":       cfg.HopSize,
			"target_peak_db": cfg.TargetPeakDB,
		}).Debug("Processing configuration loaded")
	}

	return cfg, nil
}

// Validate checks configuration consistency
func (c *ProcessingConfig) Validate() error {
	if c.FrameSize <= 0 {
		return errors.New("frame size must be positive").WithField("frame_size", c.FrameSize)
	}
	if c.HopSize <= 0 || c.HopSize > c.FrameSize {
		return errors.New("hop size must be in (0, frame_size]").WithFields(map[string]interface{}{
			"hop_size":   c.HopSize,
			"frame_size": c.FrameSize,
		})
	}
	if c.ClickWindowSeconds <= 0 {
		return errors.New("click window must be positive").WithField("click_window_seconds", c.ClickWindowSeconds)
	}
	if c.ClickThresholdSigma <= 0 {
		return errors.New("click threshold must be positive").WithField("click_threshold_sigma", c.ClickThresholdSigma)
	}
	if c.SilenceThresholdDB >= 0 {
		return errors.New("silence threshold must be negative dB").WithField("silence_threshold_db", c.SilenceThresholdDB)
	}
	if c.FadeSeconds < 0 {
		return errors.New("fade length cannot be negative").WithField("fade_seconds", c.FadeSeconds)
	}
	if c.TargetPeakDB > 0 {
		return errors.New("target peak must not exceed 0 dBFS").WithField("target_peak_db", c.TargetPeakDB)
	}
	if c.NoiseFloorQuantile <= 0 || c.NoiseFloorQuantile > 1 {
		return errors.New("noise floor quantile must be in (0, 1]").WithField("noise_floor_quantile", c.NoiseFloorQuantile)
	}
	if c.MaxConcurrentChannels < 0 {
		return errors.New("max concurrent channels cannot be negative").WithField("max_concurrent_channels", c.MaxConcurrentChannels)
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Package config implements the bridge's layered configuration (spec
// §6), grounded on the teacher's server/config.go flat tagged struct,
// generalized from a single JSON decode to the precedence chain
// described in SPEC_FULL.md §4.9: compiled-in default < environment
// (via an optional .env file) < TOML config file. No CLI flag overrides
// an individual field; the binaries' only config flag selects the file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	defaultTmpfsRoot = "/dev/shm"

	defaultStandbyPeriodMs             = 333
	defaultAlarmedPeriodMs             = 33
	defaultValidationFrames            = 5
	defaultTrackingExitFrames          = 5
	defaultPersonConfidenceThreshold   = 0.5
	defaultPersonClassID               = 0
	defaultFrameBufferBytes            = 32 * 1024 * 1024
	defaultDetectionBufferBytes        = 1 * 1024 * 1024
	defaultSignalQueueCapacity         = 10
	defaultFreshnessThresholdMsOnWake  = 50
)

// Config is the full set of tunables in spec.md §6, plus the fixed
// filesystem paths and queue names also named there.
type Config struct {
	TmpfsRoot string `toml:"tmpfs_root"`

	FrameBufferPath     string `toml:"-"`
	DetectionBufferPath string `toml:"-"`
	ControlPath         string `toml:"-"`

	FrameToInferenceQueue      string `toml:"-"`
	FrameToGatewayQueue        string `toml:"-"`
	DetectionToControllerQueue string `toml:"-"`

	StandbyPeriodMs            int     `toml:"standby_period_ms"`
	AlarmedPeriodMs            int     `toml:"alarmed_period_ms"`
	ValidationFrames           int     `toml:"validation_frames"`
	TrackingExitFrames         int     `toml:"tracking_exit_frames"`
	PersonConfidenceThreshold  float64 `toml:"person_confidence_threshold"`
	PersonClassID              uint32  `toml:"person_class_id"`
	FrameBufferBytes           int     `toml:"frame_buffer_bytes"`
	DetectionBufferBytes       int     `toml:"detection_buffer_bytes"`
	SignalQueueCapacity        int     `toml:"signal_queue_capacity"`
	FreshnessThresholdMsOnWake int     `toml:"freshness_threshold_ms_on_wake"`

	// StatusPath and MetricsCSVDir are EXPANSION-only (SPEC_FULL §4.10);
	// empty disables the corresponding feature.
	StatusPath    string `toml:"status_path"`
	MetricsCSVDir string `toml:"metrics_csv_dir"`
}

// Defaults returns the compiled-in baseline (spec §6, parenthesized values).
func Defaults() Config {
	c := Config{
		TmpfsRoot:                  defaultTmpfsRoot,
		StandbyPeriodMs:            defaultStandbyPeriodMs,
		AlarmedPeriodMs:            defaultAlarmedPeriodMs,
		ValidationFrames:           defaultValidationFrames,
		TrackingExitFrames:         defaultTrackingExitFrames,
		PersonConfidenceThreshold:  defaultPersonConfidenceThreshold,
		PersonClassID:              defaultPersonClassID,
		FrameBufferBytes:           defaultFrameBufferBytes,
		DetectionBufferBytes:       defaultDetectionBufferBytes,
		SignalQueueCapacity:        defaultSignalQueueCapacity,
		FreshnessThresholdMsOnWake: defaultFreshnessThresholdMsOnWake,
	}
	c.derivePaths()
	return c
}

func (c *Config) derivePaths() {
	c.FrameBufferPath = c.TmpfsRoot + "/frame_buffer"
	c.DetectionBufferPath = c.TmpfsRoot + "/detection_buffer"
	c.ControlPath = c.TmpfsRoot + "/sentry_control"
	c.FrameToInferenceQueue = "/frame_capture_to_inference"
	c.FrameToGatewayQueue = "/frame_capture_to_gateway"
	c.DetectionToControllerQueue = "/detection_inference_to_controller"
}

// Load builds a Config by applying, in order: compiled-in defaults,
// a best-effort .env file plus the process environment, then (if
// configPath is non-empty) a TOML file. The returned Config is final:
// there is no later layer of per-field CLI flag overrides.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	_ = godotenv.Load() // optional, silently skipped if absent

	applyEnv(&cfg)

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, errors.Wrap(err, "config: read")
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(err, "config: decode toml")
		}
	}

	cfg.derivePaths()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate rejects out-of-range values regardless of whether they came
// from the TOML file or the environment.
func (c Config) validate() error {
	switch {
	case c.StandbyPeriodMs <= 0:
		return errors.Errorf("config: standby_period_ms must be positive, got %d", c.StandbyPeriodMs)
	case c.AlarmedPeriodMs <= 0:
		return errors.Errorf("config: alarmed_period_ms must be positive, got %d", c.AlarmedPeriodMs)
	case c.ValidationFrames <= 0:
		return errors.Errorf("config: validation_frames must be positive, got %d", c.ValidationFrames)
	case c.TrackingExitFrames <= 0:
		return errors.Errorf("config: tracking_exit_frames must be positive, got %d", c.TrackingExitFrames)
	case c.PersonConfidenceThreshold < 0 || c.PersonConfidenceThreshold > 1:
		return errors.Errorf("config: person_confidence_threshold must be in [0,1], got %v", c.PersonConfidenceThreshold)
	case c.FrameBufferBytes <= 0:
		return errors.Errorf("config: frame_buffer_bytes must be positive, got %d", c.FrameBufferBytes)
	case c.DetectionBufferBytes <= 0:
		return errors.Errorf("config: detection_buffer_bytes must be positive, got %d", c.DetectionBufferBytes)
	case c.SignalQueueCapacity <= 0:
		return errors.Errorf("config: signal_queue_capacity must be positive, got %d", c.SignalQueueCapacity)
	case c.FreshnessThresholdMsOnWake < 0:
		return errors.Errorf("config: freshness_threshold_ms_on_wake must not be negative, got %d", c.FreshnessThresholdMsOnWake)
	}
	return nil
}

func applyEnv(c *Config) {
	str(&c.TmpfsRoot, "SENTRY_TMPFS_ROOT")
	ints(&c.StandbyPeriodMs, "SENTRY_STANDBY_PERIOD_MS")
	ints(&c.AlarmedPeriodMs, "SENTRY_ALARMED_PERIOD_MS")
	ints(&c.ValidationFrames, "SENTRY_VALIDATION_FRAMES")
	ints(&c.TrackingExitFrames, "SENTRY_TRACKING_EXIT_FRAMES")
	floats(&c.PersonConfidenceThreshold, "SENTRY_PERSON_CONFIDENCE_THRESHOLD")
	uints32(&c.PersonClassID, "SENTRY_PERSON_CLASS_ID")
	ints(&c.FrameBufferBytes, "SENTRY_FRAME_BUFFER_BYTES")
	ints(&c.DetectionBufferBytes, "SENTRY_DETECTION_BUFFER_BYTES")
	ints(&c.SignalQueueCapacity, "SENTRY_SIGNAL_QUEUE_CAPACITY")
	ints(&c.FreshnessThresholdMsOnWake, "SENTRY_FRESHNESS_THRESHOLD_MS_ON_WAKE")
	str(&c.StatusPath, "SENTRY_STATUS_PATH")
	str(&c.MetricsCSVDir, "SENTRY_METRICS_CSV_DIR")
}

func str(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func ints(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func uints32(dst *uint32, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func floats(dst *float64, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

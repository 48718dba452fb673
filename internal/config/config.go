package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"runstream/internal/analysis"
)

// Config represents the application configuration
type Config struct {
	Strava   StravaConfig   `json:"strava"`
	Analysis AnalysisConfig `json:"analysis"`
	Store    StoreConfig    `json:"store"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Sentry   SentryConfig   `json:"sentry"`
	Display  DisplayConfig  `json:"display"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// AnalysisConfig overrides engine thresholds. Zero values keep the
// calibrated default.
type AnalysisConfig struct {
	Workers              int     `json:"workers"`
	MinSamples           int     `json:"min_samples"`
	MaxInputSamples      int     `json:"max_input_samples"`
	MinSamplesPerMinute  float64 `json:"min_samples_per_minute"`
	MaxGapS              float64 `json:"max_gap_s"`
	MedianWindowS        float64 `json:"median_window_s"`
	WorkEnterZ           float64 `json:"work_enter_z"`
	WorkExitZ            float64 `json:"work_exit_z"`
	DwellS               float64 `json:"dwell_s"`
	MinSegmentS          float64 `json:"min_segment_s"`
	MaxRecoveryS         float64 `json:"max_recovery_s"`
	WarmupMargin         float64 `json:"warmup_margin"`
	MomentMinDurationS   float64 `json:"moment_min_duration_s"`
	MomentSpeedDeviation float64 `json:"moment_speed_deviation"`
	CadenceShiftSPM      float64 `json:"cadence_shift_spm"`
	RecoveryHRDropBPM    float64 `json:"recovery_hr_drop_bpm"`
	VisualizationPoints  int     `json:"visualization_points"`
	ThumbnailPoints      int     `json:"thumbnail_points"`
}

// StoreConfig locates the SQLite database
type StoreConfig struct {
	Path string `json:"path"` // defaults to ~/.runstream/data.db
}

// ServerConfig configures `runstream serve`
type ServerConfig struct {
	Addr string `json:"addr"`
}

// LoggingConfig configures the slog logger
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
	File   string `json:"file"`   // empty logs to stderr
}

// SentryConfig enables error reporting when DSN is set
type SentryConfig struct {
	DSN         string `json:"dsn"`
	Environment string `json:"environment"`
}

// DisplayConfig holds display preferences
type DisplayConfig struct {
	DistanceUnit string `json:"distance_unit"`
	PaceUnit     string `json:"pace_unit"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Analysis: AnalysisConfig{
			Workers: 4,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Sentry: SentryConfig{
			Environment: "local",
		},
		Display: DisplayConfig{
			DistanceUnit: "km",
			PaceUnit:     "min/km",
		},
	}
}

// Load reads the configuration from ~/.runstream/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration from path
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills zero values from DefaultConfig
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = defaults.Analysis.Workers
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = defaults.Sentry.Environment
	}
	if c.Display.DistanceUnit == "" {
		c.Display.DistanceUnit = defaults.Display.DistanceUnit
	}
	if c.Display.PaceUnit == "" {
		c.Display.PaceUnit = defaults.Display.PaceUnit
	}
}

// Save writes the configuration to ~/.runstream/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the configuration to path
func SaveTo(path string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file at the default path if none
// exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return CreateExampleAt(path)
}

// CreateExampleAt creates an example config file at path if none exists
func CreateExampleAt(path string) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
		RefreshToken: "YOUR_REFRESH_TOKEN",
	}

	return SaveTo(path, &example)
}

// Thresholds returns the engine thresholds with configured overrides applied
func (c *Config) Thresholds() analysis.Thresholds {
	th := analysis.DefaultThresholds()
	a := c.Analysis

	setInt(&th.MinSamples, a.MinSamples)
	setInt(&th.MaxInputSamples, a.MaxInputSamples)
	setInt(&th.VisualizationPoints, a.VisualizationPoints)
	setInt(&th.ThumbnailPoints, a.ThumbnailPoints)
	setFloat(&th.MinSamplesPerMinute, a.MinSamplesPerMinute)
	setFloat(&th.MaxGapS, a.MaxGapS)
	setFloat(&th.MedianWindowS, a.MedianWindowS)
	setFloat(&th.WorkEnterZ, a.WorkEnterZ)
	setFloat(&th.WorkExitZ, a.WorkExitZ)
	setFloat(&th.DwellS, a.DwellS)
	setFloat(&th.MinSegmentS, a.MinSegmentS)
	setFloat(&th.MaxRecoveryS, a.MaxRecoveryS)
	setFloat(&th.WarmupMargin, a.WarmupMargin)
	setFloat(&th.MomentMinDurationS, a.MomentMinDurationS)
	setFloat(&th.MomentSpeedDeviation, a.MomentSpeedDeviation)
	setFloat(&th.CadenceShiftSPM, a.CadenceShiftSPM)
	setFloat(&th.RecoveryHRDropBPM, a.RecoveryHRDropBPM)
	return th
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks the settings every command depends on. Strava
// credentials are checked separately by ValidateStrava since offline
// commands don't need them.
func (c *Config) Validate() error {
	th := c.Thresholds()
	if th.WorkExitZ >= th.WorkEnterZ {
		return fmt.Errorf("analysis.work_exit_z (%v) must be less than analysis.work_enter_z (%v)", th.WorkExitZ, th.WorkEnterZ)
	}
	if th.DwellS <= 0 {
		return fmt.Errorf("analysis.dwell_s must be positive, got %v", th.DwellS)
	}
	if th.MinSegmentS <= 0 {
		return fmt.Errorf("analysis.min_segment_s must be positive, got %v", th.MinSegmentS)
	}
	if th.VisualizationPoints < 2 || th.ThumbnailPoints < 2 {
		return errors.New("analysis.visualization_points and analysis.thumbnail_points must be at least 2")
	}
	if th.ThumbnailPoints > th.VisualizationPoints {
		return fmt.Errorf("analysis.thumbnail_points (%d) must not exceed analysis.visualization_points (%d)", th.ThumbnailPoints, th.VisualizationPoints)
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative, got %d", c.Analysis.Workers)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	// Validate display units
	if c.Display.DistanceUnit != "" && c.Display.DistanceUnit != "km" && c.Display.DistanceUnit != "mi" {
		return fmt.Errorf("display.distance_unit must be \"km\" or \"mi\", got %q", c.Display.DistanceUnit)
	}
	if c.Display.PaceUnit != "" && c.Display.PaceUnit != "min/km" && c.Display.PaceUnit != "min/mi" {
		return fmt.Errorf("display.pace_unit must be \"min/km\" or \"min/mi\", got %q", c.Display.PaceUnit)
	}

	return nil
}

// ValidateStrava checks the credentials needed to sync from Strava
func (c *Config) ValidateStrava() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.RefreshToken == "YOUR_REFRESH_TOKEN" {
		return errors.New("strava.refresh_token is still the example placeholder")
	}
	return nil
}

// DatabasePath returns the configured database path or the default
func (c *Config) DatabasePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data.db"), nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".runstream"), nil
}

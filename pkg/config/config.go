// Package config provides configuration management for attendwatch.
// It loads configuration from YAML files with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all attendwatch configuration.
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Processing ProcessingConfig `yaml:"processing"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Event      EventConfig      `yaml:"event"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Source string `yaml:"source"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// ProcessingConfig holds frame processing and recognition settings.
type ProcessingConfig struct {
	// SkipFrames processes every Nth acquired frame.
	SkipFrames int `yaml:"skip_frames"`
	// Downscale shrinks frames before detection (1.0 disables).
	Downscale float64 `yaml:"downscale"`
	// RecognitionThreshold is the minimum match confidence in percent.
	// Recognition quality depends entirely on this value and the
	// reference encodings; treat it as a tunable, not a fixed truth.
	RecognitionThreshold float64 `yaml:"recognition_threshold"`
	// CheckinTolerance is the 1:1 verification distance tolerance used
	// by the explicit check-in flow. Stricter than gallery matching.
	CheckinTolerance float64 `yaml:"checkin_tolerance"`
	ModelPath        string  `yaml:"model_path"`
}

// MonitoringConfig holds monitoring loop settings. Intervals are seconds.
type MonitoringConfig struct {
	UpdateIntervalSec    int `yaml:"update_interval"`
	ReconcileIntervalSec int `yaml:"reconcile_interval"`
	UnseenTimeoutMin     int `yaml:"unseen_timeout_minutes"`
}

// UpdateInterval returns the ledger write throttle as a duration.
func (m MonitoringConfig) UpdateInterval() time.Duration {
	return time.Duration(m.UpdateIntervalSec) * time.Second
}

// ReconcileInterval returns the reconciliation sweep period as a duration.
func (m MonitoringConfig) ReconcileInterval() time.Duration {
	return time.Duration(m.ReconcileIntervalSec) * time.Second
}

// UnseenTimeout returns the live-presence eviction timeout as a duration.
func (m MonitoringConfig) UnseenTimeout() time.Duration {
	return time.Duration(m.UnseenTimeoutMin) * time.Minute
}

// EventConfig holds the event time window used for status computation.
type EventConfig struct {
	Date                       string `yaml:"date"`       // YYYY-MM-DD, empty means today
	Start                      string `yaml:"start_time"` // HH:MM
	End                        string `yaml:"end_time"`   // HH:MM
	LateThresholdMinutes       int    `yaml:"late_threshold_minutes"`
	EarlyLeaveThresholdSeconds int    `yaml:"early_leave_threshold_seconds"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	AttendanceFile    string `yaml:"attendance_file"`
	StudentsFile      string `yaml:"students_file"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/attendwatch")
	return &Config{
		Camera: CameraConfig{
			Source: "0",
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Processing: ProcessingConfig{
			SkipFrames:           3,
			Downscale:            0.5,
			RecognitionThreshold: 60,
			CheckinTolerance:     0.4,
			ModelPath:            filepath.Join(dataDir, "models"),
		},
		Monitoring: MonitoringConfig{
			UpdateIntervalSec:    120,
			ReconcileIntervalSec: 30,
			UnseenTimeoutMin:     30,
		},
		Event: EventConfig{
			Start:                      "09:00",
			End:                        "17:00",
			LateThresholdMinutes:       15,
			EarlyLeaveThresholdSeconds: 600,
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			AttendanceFile:    "attendance.xlsx",
			StudentsFile:      "students.csv",
			EncryptionEnabled: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "attendwatch.log"),
		},
	}
}

// Load loads configuration from the specified file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/attendwatch/attendwatch.yaml"); err == nil {
		return Load("/etc/attendwatch/attendwatch.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/attendwatch/attendwatch.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Source == "" {
		return fmt.Errorf("camera source must be set")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("invalid camera FPS: %d", c.Camera.FPS)
	}

	if c.Processing.SkipFrames <= 0 {
		return fmt.Errorf("skip_frames must be positive, got %d", c.Processing.SkipFrames)
	}
	if c.Processing.Downscale <= 0 || c.Processing.Downscale > 1 {
		return fmt.Errorf("downscale must be in (0, 1], got %f", c.Processing.Downscale)
	}
	if c.Processing.RecognitionThreshold < 0 || c.Processing.RecognitionThreshold > 100 {
		return fmt.Errorf("recognition_threshold must be between 0 and 100, got %f", c.Processing.RecognitionThreshold)
	}
	if c.Processing.CheckinTolerance <= 0 || c.Processing.CheckinTolerance > 1 {
		return fmt.Errorf("checkin_tolerance must be in (0, 1], got %f", c.Processing.CheckinTolerance)
	}

	if c.Monitoring.UpdateIntervalSec <= 0 {
		return fmt.Errorf("update_interval must be positive, got %d", c.Monitoring.UpdateIntervalSec)
	}
	if c.Monitoring.ReconcileIntervalSec <= 0 {
		return fmt.Errorf("reconcile_interval must be positive, got %d", c.Monitoring.ReconcileIntervalSec)
	}
	if c.Monitoring.UnseenTimeoutMin <= 0 {
		return fmt.Errorf("unseen_timeout_minutes must be positive, got %d", c.Monitoring.UnseenTimeoutMin)
	}

	if c.Event.LateThresholdMinutes < 0 {
		return fmt.Errorf("late_threshold_minutes must not be negative, got %d", c.Event.LateThresholdMinutes)
	}
	if c.Event.EarlyLeaveThresholdSeconds < 0 {
		return fmt.Errorf("early_leave_threshold_seconds must not be negative, got %d", c.Event.EarlyLeaveThresholdSeconds)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Processing.ModelPath = ExpandPath(c.Processing.ModelPath)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for storage and logging.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := os.MkdirAll(c.FacesDir(), 0700); err != nil {
		return fmt.Errorf("failed to create faces directory: %w", err)
	}

	if err := os.MkdirAll(c.Processing.ModelPath, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	logDir := filepath.Dir(c.Logging.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	return nil
}

// FacesDir returns the directory holding reference face encodings.
func (c *Config) FacesDir() string {
	return filepath.Join(c.Storage.DataDir, "faces")
}

// AttendancePath returns the path to the attendance ledger file.
func (c *Config) AttendancePath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.AttendanceFile)
}

// StudentsPath returns the path to the student registry file.
func (c *Config) StudentsPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.StudentsFile)
}

package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Web       WebConfig
	Biometric BiometricConfig
	Detector  DetectorConfig
	Camera    CameraConfig
	Log       LogConfig
	Defaults  DefaultsConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// BiometricConfig holds the capture and verification policy.
type BiometricConfig struct {
	Backend              string // detector backend, selects the default threshold
	Threshold            float64
	MinMatches           int
	TargetCount          int
	CaptureBudget        time.Duration
	SuccessPause         time.Duration
	FailurePause         time.Duration
	MaxAttempts          int
	SessionTimeout       time.Duration
	AllowEmptyEnrollment bool // register voters whose capture produced no descriptors
}

type DetectorConfig struct {
	Command string   // defaults to python3
	Args    []string // defaults to -u python/detector.py
}

type CameraConfig struct {
	Device    string // defaults to /dev/video0
	Format    string // ffmpeg input format, defaults to v4l2
	FrameRate int    // defaults to 5
}

type LogConfig struct {
	Level      string
	File       string // empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultsConfig mirrors defaults.yaml.
type DefaultsConfig struct {
	Backends     map[string]BackendDefaults `yaml:"backends"`
	Capture      CaptureDefaults            `yaml:"capture"`
	Verification VerificationDefaults       `yaml:"verification"`
}

type BackendDefaults struct {
	Threshold float64 `yaml:"threshold"`
}

type CaptureDefaults struct {
	TargetCount  int           `yaml:"target_count"`
	Budget       time.Duration `yaml:"budget"`
	SuccessPause time.Duration `yaml:"success_pause"`
	FailurePause time.Duration `yaml:"failure_pause"`
}

type VerificationDefaults struct {
	MinMatches     int           `yaml:"min_matches"`
	MaxAttempts    int           `yaml:"max_attempts"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envDuration reads a Go duration string such as "15s", falling back to defaultVal.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadDefaults() DefaultsConfig {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return defaults
}

func Load() *Config {
	defaults := loadDefaults()

	backend := envString("BIOMETRIC_BACKEND", "blazeface")
	threshold := envFloat("BIOMETRIC_THRESHOLD", defaults.Backends[backend].Threshold)

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", nil),
		},
		Biometric: BiometricConfig{
			Backend:              backend,
			Threshold:            threshold,
			MinMatches:           envInt("BIOMETRIC_MIN_MATCHES", defaults.Verification.MinMatches),
			TargetCount:          envInt("BIOMETRIC_TARGET_COUNT", defaults.Capture.TargetCount),
			CaptureBudget:        envDuration("BIOMETRIC_CAPTURE_BUDGET", defaults.Capture.Budget),
			SuccessPause:         envDuration("BIOMETRIC_SUCCESS_PAUSE", defaults.Capture.SuccessPause),
			FailurePause:         envDuration("BIOMETRIC_FAILURE_PAUSE", defaults.Capture.FailurePause),
			MaxAttempts:          envInt("BIOMETRIC_MAX_ATTEMPTS", defaults.Verification.MaxAttempts),
			SessionTimeout:       envDuration("BIOMETRIC_SESSION_TIMEOUT", defaults.Verification.SessionTimeout),
			AllowEmptyEnrollment: envBool("BIOMETRIC_ALLOW_EMPTY_ENROLLMENT", false),
		},
		Detector: DetectorConfig{
			Command: envString("DETECTOR_COMMAND", "python3"),
			Args:    envList("DETECTOR_ARGS", []string{"-u", "python/detector.py"}),
		},
		Camera: CameraConfig{
			Device:    envString("CAMERA_DEVICE", "/dev/video0"),
			Format:    envString("CAMERA_FORMAT", "v4l2"),
			FrameRate: envInt("CAMERA_FRAME_RATE", 5),
		},
		Log: LogConfig{
			Level:      envString("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   envBool("LOG_COMPRESS", true),
		},
		Defaults: defaults,
	}
}

// Validate reports configuration that would make verification unusable.
func (c *Config) Validate() error {
	b := c.Biometric
	if _, ok := c.Defaults.Backends[b.Backend]; !ok {
		return fmt.Errorf("unknown biometric backend %q", b.Backend)
	}
	if b.Threshold <= 0 {
		return fmt.Errorf("biometric threshold must be positive, got %v", b.Threshold)
	}
	if b.MinMatches < 1 {
		return fmt.Errorf("minimum matches must be at least 1, got %d", b.MinMatches)
	}
	if b.TargetCount < 1 {
		return fmt.Errorf("capture target count must be at least 1, got %d", b.TargetCount)
	}
	if b.MaxAttempts < 1 {
		return fmt.Errorf("maximum verification attempts must be at least 1, got %d", b.MaxAttempts)
	}
	return nil
}

// Addr returns the listen address of the web server.
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

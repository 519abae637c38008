// Package config holds the container configuration: device tool selection,
// per-class command timeouts, HTTP server knobs, the settings map and the
// optional auth material. Values merge from baked-in defaults, an optional
// YAML file and CCC_* environment overrides, in that order.
package config

import (
	"time"
)

// Config is the complete container configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// Tool is the device control executable, resolved through PATH.
	Tool string

	// CaptureDir is the base directory for downloaded capture frames.
	CaptureDir string

	// AuditDir is the directory holding the audit log.
	AuditDir string

	Timing   TimingConfig
	Settings []SettingEntry
	Auth     AuthConfig
}

// TimingConfig groups the timeout classes for device and HTTP traffic.
type TimingConfig struct {
	// CommandGetConfig bounds one get-configuration round trip.
	CommandGetConfig time.Duration

	// CommandSetConfig bounds one set-configuration round trip.
	CommandSetConfig time.Duration

	// AdmitSetConfig bounds how long a write will poll-wait for the
	// executor slot before failing busy.
	AdmitSetConfig time.Duration

	// CaptureMargin pads a capture sequence's computed run timeout.
	CaptureMargin time.Duration

	// SystemCommand bounds host shutdown/restart commands.
	SystemCommand time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// HeartbeatInterval paces SSE keepalive comments.
	HeartbeatInterval time.Duration

	// EventBufferSize is the telemetry replay buffer capacity.
	EventBufferSize int
}

// SettingEntry maps one friendly setting name to its device path.
type SettingEntry struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Action bool   `yaml:"action"`
}

// AuthConfig selects the bearer-token verification mode. An empty Algorithm
// disables authentication entirely.
type AuthConfig struct {
	Algorithm     string // "", "HS256" or "RS256"
	SecretKey     string // HS256 shared secret
	PublicKeyFile string // RS256 PEM file
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		Addr:       ":8000",
		Tool:       "gphoto2",
		CaptureDir: "captures",
		AuditDir:   "logs",
		Timing: TimingConfig{
			CommandGetConfig:  10 * time.Second,
			CommandSetConfig:  20 * time.Second,
			AdmitSetConfig:    10 * time.Second,
			CaptureMargin:     2 * time.Minute,
			SystemCommand:     30 * time.Second,
			HTTPReadTimeout:   30 * time.Second,
			HTTPWriteTimeout:  30 * time.Second,
			HTTPIdleTimeout:   120 * time.Second,
			HeartbeatInterval: 15 * time.Second,
			EventBufferSize:   50,
		},
		Settings: []SettingEntry{
			{Name: "shutterspeed", Path: "/main/capturesettings/shutterspeed"},
			{Name: "iso", Path: "/main/imgsettings/iso"},
			{Name: "aperture", Path: "/main/capturesettings/f-number"},
			{Name: "autofocus", Path: "/main/actions/autofocusdrive", Action: true},
		},
	}
}

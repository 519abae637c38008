package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations that would misbehave at runtime rather
// than letting them surface as odd timeouts or dead settings later.
func Validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if cfg.Tool == "" {
		return fmt.Errorf("tool must not be empty")
	}

	t := cfg.Timing
	durations := map[string]int64{
		"getConfig":     int64(t.CommandGetConfig),
		"setConfig":     int64(t.CommandSetConfig),
		"captureMargin": int64(t.CaptureMargin),
		"systemCommand": int64(t.SystemCommand),
		"httpRead":      int64(t.HTTPReadTimeout),
		"httpWrite":     int64(t.HTTPWriteTimeout),
		"httpIdle":      int64(t.HTTPIdleTimeout),
		"heartbeat":     int64(t.HeartbeatInterval),
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("timing.%s must be positive", name)
		}
	}
	// A zero write admission budget is legal: writes then fail busy
	// immediately instead of poll-waiting.
	if t.AdmitSetConfig < 0 {
		return fmt.Errorf("timing.setAdmit must not be negative")
	}
	if t.EventBufferSize <= 0 {
		return fmt.Errorf("timing.eventBufferSize must be positive")
	}

	if len(cfg.Settings) == 0 {
		return fmt.Errorf("settings map must not be empty")
	}
	seen := make(map[string]bool)
	for _, entry := range cfg.Settings {
		if entry.Name == "" {
			return fmt.Errorf("setting with empty name")
		}
		if !strings.HasPrefix(entry.Path, "/") {
			return fmt.Errorf("setting %s: path %q is not absolute", entry.Name, entry.Path)
		}
		if seen[entry.Name] {
			return fmt.Errorf("duplicate setting name %s", entry.Name)
		}
		seen[entry.Name] = true
	}

	switch cfg.Auth.Algorithm {
	case "":
		// Auth disabled.
	case "HS256":
		if cfg.Auth.SecretKey == "" {
			return fmt.Errorf("auth.algorithm HS256 requires CCC_AUTH_SECRET")
		}
	case "RS256":
		if cfg.Auth.PublicKeyFile == "" {
			return fmt.Errorf("auth.algorithm RS256 requires a public key file")
		}
	default:
		return fmt.Errorf("unsupported auth algorithm %q", cfg.Auth.Algorithm)
	}

	return nil
}

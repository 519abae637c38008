package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultFile is consulted when CCC_CONFIG is not set.
const DefaultFile = "config.yaml"

// Load merges Defaults() + optional YAML file + CCC_* env overrides and
// validates the result.
func Load() (*Config, error) {
	cfg := Defaults()

	path := os.Getenv("CCC_CONFIG")
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else if os.Getenv("CCC_CONFIG") != "" {
		// An explicitly named file must exist.
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// fileConfig is the YAML file schema. Durations are strings in Go duration
// syntax; absent fields leave the current value untouched.
type fileConfig struct {
	Addr       string `yaml:"addr"`
	Tool       string `yaml:"tool"`
	CaptureDir string `yaml:"captureDir"`
	AuditDir   string `yaml:"auditDir"`

	Timing struct {
		GetConfig       string `yaml:"getConfig"`
		SetConfig       string `yaml:"setConfig"`
		SetAdmit        string `yaml:"setAdmit"`
		CaptureMargin   string `yaml:"captureMargin"`
		SystemCommand   string `yaml:"systemCommand"`
		HTTPRead        string `yaml:"httpRead"`
		HTTPWrite       string `yaml:"httpWrite"`
		HTTPIdle        string `yaml:"httpIdle"`
		Heartbeat       string `yaml:"heartbeat"`
		EventBufferSize int    `yaml:"eventBufferSize"`
	} `yaml:"timing"`

	Settings []SettingEntry `yaml:"settings"`

	Auth struct {
		Algorithm     string `yaml:"algorithm"`
		PublicKeyFile string `yaml:"publicKeyFile"`
	} `yaml:"auth"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.Tool, fc.Tool)
	setString(&cfg.CaptureDir, fc.CaptureDir)
	setString(&cfg.AuditDir, fc.AuditDir)

	if err := setDuration(&cfg.Timing.CommandGetConfig, fc.Timing.GetConfig); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.CommandSetConfig, fc.Timing.SetConfig); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.AdmitSetConfig, fc.Timing.SetAdmit); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.CaptureMargin, fc.Timing.CaptureMargin); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.SystemCommand, fc.Timing.SystemCommand); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.HTTPReadTimeout, fc.Timing.HTTPRead); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.HTTPWriteTimeout, fc.Timing.HTTPWrite); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.HTTPIdleTimeout, fc.Timing.HTTPIdle); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timing.HeartbeatInterval, fc.Timing.Heartbeat); err != nil {
		return err
	}
	if fc.Timing.EventBufferSize > 0 {
		cfg.Timing.EventBufferSize = fc.Timing.EventBufferSize
	}

	// A settings list in the file replaces the default map wholesale;
	// partial merging of setting entries would be ambiguous.
	if len(fc.Settings) > 0 {
		cfg.Settings = fc.Settings
	}

	setString(&cfg.Auth.Algorithm, fc.Auth.Algorithm)
	setString(&cfg.Auth.PublicKeyFile, fc.Auth.PublicKeyFile)
	return nil
}

// applyEnvOverrides applies CCC_* environment variables on top of whatever
// the defaults and the file produced. Malformed values are ignored rather
// than fatal, matching how deployment scripts tolerate stale variables.
func applyEnvOverrides(cfg *Config) {
	envString(&cfg.Addr, "CCC_ADDR")
	envString(&cfg.Tool, "CCC_TOOL")
	envString(&cfg.CaptureDir, "CCC_CAPTURE_DIR")
	envString(&cfg.AuditDir, "CCC_AUDIT_DIR")

	envDuration(&cfg.Timing.CommandGetConfig, "CCC_TIMING_GET_CONFIG")
	envDuration(&cfg.Timing.CommandSetConfig, "CCC_TIMING_SET_CONFIG")
	envDuration(&cfg.Timing.AdmitSetConfig, "CCC_TIMING_SET_ADMIT")
	envDuration(&cfg.Timing.CaptureMargin, "CCC_TIMING_CAPTURE_MARGIN")
	envDuration(&cfg.Timing.SystemCommand, "CCC_TIMING_SYSTEM_COMMAND")
	envDuration(&cfg.Timing.HTTPReadTimeout, "CCC_TIMING_HTTP_READ")
	envDuration(&cfg.Timing.HTTPWriteTimeout, "CCC_TIMING_HTTP_WRITE")
	envDuration(&cfg.Timing.HTTPIdleTimeout, "CCC_TIMING_HTTP_IDLE")
	envDuration(&cfg.Timing.HeartbeatInterval, "CCC_TIMING_HEARTBEAT")

	if val := os.Getenv("CCC_EVENT_BUFFER_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			cfg.Timing.EventBufferSize = size
		}
	}

	envString(&cfg.Auth.Algorithm, "CCC_AUTH_ALG")
	envString(&cfg.Auth.SecretKey, "CCC_AUTH_SECRET")
	envString(&cfg.Auth.PublicKeyFile, "CCC_AUTH_PUBLIC_KEY_FILE")
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, val string) error {
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", val, err)
	}
	*dst = d
	return nil
}

func envString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

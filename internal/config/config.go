// Package config assembles the runtime configuration from literal
// defaults, an optional TOML file and PROXMOX_* environment variables,
// in ascending precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/idr0id/pvemon/internal/proxmox"
)

// Environment variables recognized by Load. All are optional; an empty
// value counts as unset.
const (
	EnvHost      = "PROXMOX_HOST"
	EnvPort      = "PROXMOX_PORT"
	EnvUser      = "PROXMOX_USER"
	EnvPassword  = "PROXMOX_PASSWORD"
	EnvNode      = "PROXMOX_NODE"
	EnvVerifySSL = "PROXMOX_VERIFY_SSL"
)

// ConfigurationError reports an environment variable that is set but
// cannot be coerced to its expected type.
type ConfigurationError struct {
	Variable string
	Value    string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s=%q: %v", e.Variable, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config is the complete runtime configuration, constructed once at
// startup and passed by value from there on.
type Config struct {
	Connection proxmox.ConnConfig `koanf:"connection"`
	Monitor    MonitorConfig      `koanf:"monitor"`
	Logging    LoggingConfig      `koanf:"logging"`
}

// MonitorConfig controls the polling loop of the monitor command.
type MonitorConfig struct {
	Interval        time.Duration `koanf:"interval"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectDelay    time.Duration `koanf:"connect_delay"`
	RefreshDelay    time.Duration `koanf:"refresh_delay"`
	Once            bool          `koanf:"-"`
}

// LoggingConfig selects an optional log file written in addition to
// stderr. Empty means stderr only.
type LoggingConfig struct {
	File string `koanf:"file"`
}

func defaults() Config {
	return Config{
		Connection: proxmox.ConnConfig{
			Host:       "your_proxmox_ip",
			Port:       8006,
			User:       "your_user",
			Password:   "your_password",
			Node:       "pve",
			VerifySSL:  false,
			Timeout:    10 * time.Second,
			Retries:    3,
			RetryDelay: time.Second,
			RateRPS:    4,
			RateBurst:  8,
		},
		Monitor: MonitorConfig{
			Interval:        10 * time.Second,
			ConnectAttempts: 3,
			ConnectDelay:    2 * time.Second,
			RefreshDelay:    2 * time.Second,
		},
	}
}

// Load assembles the configuration. The file layer is applied only when
// path is non-empty; a missing or malformed file is then an error rather
// than a silent fallback. Load has no side effects and returns equal
// configs for equal environments.
func Load(path string) (Config, error) {
	conf := defaults()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return conf, fmt.Errorf("error loading config: %w", err)
		}
		if err := k.Unmarshal("", &conf); err != nil {
			return conf, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	if err := applyEnv(&conf.Connection); err != nil {
		return conf, err
	}

	return conf, nil
}

// applyEnv overlays the six environment variables onto the connection
// settings. Values are taken verbatim, without trimming, except for two
// coercions: the port must parse as a base-10 integer, and SSL
// verification is enabled only by the exact word "true" in any casing.
// A present but malformed port fails loudly instead of masking the
// misconfiguration with a default.
func applyEnv(conn *proxmox.ConnConfig) error {
	if v := os.Getenv(EnvHost); v != "" {
		conn.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigurationError{Variable: EnvPort, Value: v, Err: err}
		}
		conn.Port = port
	}
	if v := os.Getenv(EnvUser); v != "" {
		conn.User = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		conn.Password = v
	}
	if v := os.Getenv(EnvNode); v != "" {
		conn.Node = v
	}
	if v := os.Getenv(EnvVerifySSL); v != "" {
		conn.VerifySSL = strings.ToLower(v) == "true"
	}
	return nil
}

package proxmox

import (
	"fmt"
	"log/slog"
	"time"
)

// ConnConfig holds the connection settings for a single Proxmox VE node.
//
// Defaults and the PROXMOX_* environment overrides are applied by the
// config package; the client consumes the assembled value as-is.
type ConnConfig struct {
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	User       string        `koanf:"user"`
	Password   string        `koanf:"password"`
	Node       string        `koanf:"node"`
	VerifySSL  bool          `koanf:"verify_ssl"`
	Timeout    time.Duration `koanf:"timeout"`
	Retries    int           `koanf:"retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
	RateRPS    float64       `koanf:"rate_rps"`
	RateBurst  int           `koanf:"rate_burst"`
	DryRun     bool          `koanf:"dry_run"`
}

// Addr returns the base URL of the node's API endpoint.
func (c ConnConfig) Addr() string {
	return fmt.Sprintf("https://%s:%d", c.Host, c.Port)
}

// LogValue renders the connection settings with the password redacted.
// The password must never reach a log handler, whatever the level.
func (c ConnConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("user", c.User),
		slog.String("password", "[redacted]"),
		slog.String("node", c.Node),
		slog.Bool("verify_ssl", c.VerifySSL),
	)
}

package goRefMon

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goRefMon/token"
)

// Config configures a Monitor. Start from DefaultConfig.
type Config struct {
	Token   TokenConfig
	Session SessionConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	// Logger receives fail-open configuration fallbacks, delivery failures
	// and escalations. Nil means slog.Default().
	Logger *slog.Logger
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig bounds token memory.
type TokenConfig struct {
	// PoolLimit caps bytes charged by all live tokens. Zero is unlimited.
	PoolLimit int64
	// DefaultDynamicCharge is the initial dynamic region size of a token.
	DefaultDynamicCharge int
	// MaxDynamicCharge caps the growth of one token's dynamic region.
	MaxDynamicCharge int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the logon-session table.
type SessionConfig struct {
	// RedisPrefix namespaces session keys when a Redis client is supplied.
	RedisPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the audit pipeline. Queue bounds and the
// crash-on-audit-fail policy come from the configuration store instead.
type AuditConfig struct {
	// MaxRecordSize caps one marshalled record in bytes.
	MaxRecordSize int
	// HaltExitCode is used by the default halter.
	HaltExitCode int
	// ShutdownTimeout bounds Close when the caller's context has no deadline.
	ShutdownTimeout time.Duration
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			DefaultDynamicCharge: token.DefaultDynamicCharge,
			MaxDynamicCharge:     token.DefaultMaxDynamicCharge,
		},
		Session: SessionConfig{
			RedisPrefix: "lsa",
		},
		Audit: AuditConfig{
			MaxRecordSize:   1 << 20,
			HaltExitCode:    1,
			ShutdownTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// minRecordSize fits a header and one parameter slot.
const minRecordSize = 64

// Validate reports the first invalid field, wrapped in ErrConfigInvalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	if c.Token.PoolLimit < 0 {
		return invalid("Token.PoolLimit must be >= 0")
	}
	if c.Token.DefaultDynamicCharge < 0 || c.Token.MaxDynamicCharge < 0 {
		return invalid("Token dynamic charges must be >= 0")
	}
	if c.Token.MaxDynamicCharge > 0 && c.Token.MaxDynamicCharge < c.Token.DefaultDynamicCharge {
		return invalid("Token.MaxDynamicCharge %d below DefaultDynamicCharge %d", c.Token.MaxDynamicCharge, c.Token.DefaultDynamicCharge)
	}

	if p := c.Session.RedisPrefix; p == "" || strings.ContainsAny(p, " \t\r\n") {
		return invalid("Session.RedisPrefix must be non-empty without whitespace")
	}

	if c.Audit.MaxRecordSize != 0 && c.Audit.MaxRecordSize < minRecordSize {
		return invalid("Audit.MaxRecordSize must be 0 or >= %d", minRecordSize)
	}
	if c.Audit.HaltExitCode < 0 || c.Audit.HaltExitCode > 125 {
		return invalid("Audit.HaltExitCode must be in [0,125]")
	}
	if c.Audit.ShutdownTimeout < 0 {
		return invalid("Audit.ShutdownTimeout must be >= 0")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalid("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}
	return nil
}

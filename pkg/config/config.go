// Package config loads dittomds' configuration from (in increasing
// priority order) built-in defaults, a YAML file and environment
// variables; no command-line flags are bound into it. It validates the
// result and watches the file for changes
// so session tunables can be updated live without a restart.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/marmos91/dittomds/internal/bytesize"
	"github.com/marmos91/dittomds/internal/session"
)

// ServerConfig controls the listener and reactor pool.
type ServerConfig struct {
	ListenAddr     string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required,hostname_port"`
	LoopCount      int    `mapstructure:"loop_count" yaml:"loop_count" validate:"min=1,max=1024"`
	LoopQueueDepth int    `mapstructure:"loop_queue_depth" yaml:"loop_queue_depth" validate:"min=1"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1"`
	MetricsAddr    string `mapstructure:"metrics_addr" yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// SessionConfig is the plain-data form of session tunables, decoded from
// config and validated before being applied to a live session.Tunables.
type SessionConfig struct {
	MaxPendingOps            int32  `mapstructure:"max_pending_ops" yaml:"max_pending_ops" validate:"min=1"`
	MaxPendingBytes          string `mapstructure:"max_pending_bytes" yaml:"max_pending_bytes" validate:"required"`
	MaxReadAhead             string `mapstructure:"max_read_ahead" yaml:"max_read_ahead" validate:"required"`
	MaxWriteBehind           string `mapstructure:"max_write_behind" yaml:"max_write_behind" validate:"required"`
	InactivityTimeoutSeconds int32  `mapstructure:"inactivity_timeout_seconds" yaml:"inactivity_timeout_seconds"`
	InputCompactAt           string `mapstructure:"input_compact_at" yaml:"input_compact_at" validate:"required"`
	OutputCompactAt          string `mapstructure:"output_compact_at" yaml:"output_compact_at" validate:"required"`
	AuditLogging             bool   `mapstructure:"audit_logging" yaml:"audit_logging"`
}

// LoggingConfig controls internal/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint" validate:"required_if=Enabled true"`
	Insecure       bool    `mapstructure:"insecure" yaml:"insecure"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	SampleFraction float64 `mapstructure:"sample_fraction" yaml:"sample_fraction" validate:"min=0,max=1"`
}

// Config is the full, validated application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// DefaultConfig returns conservative defaults, the same shape
// internal/telemetry/config.go's DefaultConfig() provides for the
// teacher's telemetry section.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:     "0.0.0.0:2049",
			LoopCount:      4,
			LoopQueueDepth: 256,
			MaxConnections: 4096,
			MetricsAddr:    "127.0.0.1:9090",
		},
		Session: SessionConfig{
			MaxPendingOps:            64,
			MaxPendingBytes:          "4MiB",
			MaxReadAhead:             "256KiB",
			MaxWriteBehind:           "4MiB",
			InactivityTimeoutSeconds: 300,
			InputCompactAt:           "64KiB",
			OutputCompactAt:          "64KiB",
			AuditLogging:             false,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Insecure:       true,
			ServiceName:    "dittomds",
			SampleFraction: 0.1,
		},
	}
}

// Load builds a viper instance layered as defaults < file < environment,
// and leaves room for a cobra command to layer flags on top before
// calling Unmarshal.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("server", def.Server)
	v.SetDefault("session", def.Session)
	v.SetDefault("logging", def.Logging)
	v.SetDefault("telemetry", def.Telemetry)

	v.SetEnvPrefix("DITTOMDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %q: %w", configPath, err)
		}
	}

	return v, nil
}

// Unmarshal decodes v into a Config and validates it.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct tag validation plus the cross-field checks
// validator tags alone can't express (byte-size strings must parse).
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: validation: %w", err)
	}

	if _, err := bytesize.ParseByteSize(cfg.Session.MaxPendingBytes); err != nil {
		return fmt.Errorf("config: session.max_pending_bytes: %w", err)
	}
	if _, err := bytesize.ParseByteSize(cfg.Session.MaxReadAhead); err != nil {
		return fmt.Errorf("config: session.max_read_ahead: %w", err)
	}
	if _, err := bytesize.ParseByteSize(cfg.Session.MaxWriteBehind); err != nil {
		return fmt.Errorf("config: session.max_write_behind: %w", err)
	}
	if _, err := bytesize.ParseByteSize(cfg.Session.InputCompactAt); err != nil {
		return fmt.Errorf("config: session.input_compact_at: %w", err)
	}
	if _, err := bytesize.ParseByteSize(cfg.Session.OutputCompactAt); err != nil {
		return fmt.Errorf("config: session.output_compact_at: %w", err)
	}

	return nil
}

// ToTunablesConfig converts the validated, human-readable SessionConfig
// into the plain-integer form session.Tunables.Update expects. loopCount is
// the reactor's configured loop count, used to decide session.Tunables'
// maxPendingOps-defaults-to-16 rule (spec.md §4.1: only when the reactor is
// configured multi-threaded before it starts). Callers must have already
// run Validate (or trust the byte-size strings parse).
func (s SessionConfig) ToTunablesConfig(loopCount int) (session.TunablesConfig, error) {
	maxPendingBytes, err := bytesize.ParseByteSize(s.MaxPendingBytes)
	if err != nil {
		return session.TunablesConfig{}, err
	}
	maxReadAhead, err := bytesize.ParseByteSize(s.MaxReadAhead)
	if err != nil {
		return session.TunablesConfig{}, err
	}
	maxWriteBehind, err := bytesize.ParseByteSize(s.MaxWriteBehind)
	if err != nil {
		return session.TunablesConfig{}, err
	}
	inputCompactAt, err := bytesize.ParseByteSize(s.InputCompactAt)
	if err != nil {
		return session.TunablesConfig{}, err
	}
	outputCompactAt, err := bytesize.ParseByteSize(s.OutputCompactAt)
	if err != nil {
		return session.TunablesConfig{}, err
	}

	return session.TunablesConfig{
		MaxPendingOps:            s.MaxPendingOps,
		MaxPendingBytes:          maxPendingBytes.Int64(),
		MaxReadAhead:             int32(maxReadAhead.Uint64()),
		MaxWriteBehind:           maxWriteBehind.Int64(),
		InactivityTimeoutSeconds: s.InactivityTimeoutSeconds,
		InputCompactAt:           int32(inputCompactAt.Uint64()),
		OutputCompactAt:          int32(outputCompactAt.Uint64()),
		AuditLogging:             s.AuditLogging,
		MultiThreaded:            loopCount > 1,
	}, nil
}

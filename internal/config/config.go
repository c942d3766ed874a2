package config

import (
	"strings"
	"time"
)

// Config represents the complete application configuration.
// Values come from defaults, an optional YAML file, an optional .env file,
// and QUOTEINTAKE_* environment variables, in increasing precedence.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	SMTP      SMTPConfig      `mapstructure:"smtp" yaml:"smtp"`
	Secrets   SecretsConfig   `mapstructure:"secrets" yaml:"secrets"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig selects the database. Driver "libsql" uses Path or URL
// (+AuthToken for Turso); driver "postgres" uses DSN.
type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	URL       string `mapstructure:"url" yaml:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
	DSN       string `mapstructure:"dsn" yaml:"dsn"`
}

// RateLimitConfig configures the submission rate limiter.
type RateLimitConfig struct {
	// Backend is "memory" (single instance) or "redis" (shared).
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	QuoteRequest  RuleConfig    `mapstructure:"quote_request" yaml:"quote_request"`
}

// RuleConfig is one fixed-window rule.
type RuleConfig struct {
	Window time.Duration `mapstructure:"window" yaml:"window"`
	Max    int           `mapstructure:"max" yaml:"max"`
}

// RedisConfig points at the shared rate limit backend.
type RedisConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NotifyConfig configures the notification dispatcher.
type NotifyConfig struct {
	Recipients      []string      `mapstructure:"recipients" yaml:"recipients"`
	FunctionURL     string        `mapstructure:"function_url" yaml:"function_url"`
	FunctionTimeout time.Duration `mapstructure:"function_timeout" yaml:"function_timeout"`
	FrontendURL     string        `mapstructure:"frontend_url" yaml:"frontend_url"`
	QueueSize       int           `mapstructure:"queue_size" yaml:"queue_size"`
	Workers         int           `mapstructure:"workers" yaml:"workers"`
	Lang            string        `mapstructure:"lang" yaml:"lang"`
	Currency        string        `mapstructure:"currency" yaml:"currency"`
	Brand           BrandConfig   `mapstructure:"brand" yaml:"brand"`
}

// RecipientList returns the trimmed, non-empty recipients.
func (n NotifyConfig) RecipientList() []string {
	out := make([]string, 0, len(n.Recipients))
	for _, raw := range n.Recipients {
		for _, part := range strings.Split(raw, ",") {
			if addr := strings.TrimSpace(part); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

// BrandConfig styles the primary notification.
type BrandConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	PrimaryColor string `mapstructure:"primary_color" yaml:"primary_color"`
	HeaderBg     string `mapstructure:"header_bg" yaml:"header_bg"`
	HeaderFg     string `mapstructure:"header_fg" yaml:"header_fg"`
}

// SMTPConfig configures the fallback mail transport. User, Password and From
// are used when the secret provider has no value.
type SMTPConfig struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	User     string        `mapstructure:"user" yaml:"user"`
	Password string        `mapstructure:"password" yaml:"password"`
	From     string        `mapstructure:"from" yaml:"from"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SecretsConfig selects the credential secret provider.
type SecretsConfig struct {
	// Provider is "none" or "aws".
	Provider string        `mapstructure:"provider" yaml:"provider"`
	Region   string        `mapstructure:"region" yaml:"region"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Profile selects the logging complexity level (simple, structured)
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port" yaml:"port"`
}

// TracingConfig selects the span exporter (none, stdout, otlp).
type TracingConfig struct {
	Exporter string `mapstructure:"exporter" yaml:"exporter"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

const redacted = "REDACTED"

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	out.Notify.Recipients = append([]string(nil), c.Notify.Recipients...)
	if out.Store.AuthToken != "" {
		out.Store.AuthToken = redacted
	}
	if out.Store.DSN != "" {
		out.Store.DSN = redactDSN(out.Store.DSN)
	}
	if out.SMTP.Password != "" {
		out.SMTP.Password = redacted
	}
	if out.Redis.URL != "" {
		out.Redis.URL = redactDSN(out.Redis.URL)
	}
	return out
}

func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return redacted
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	return scheme + "://" + redacted + rest[at:]
}

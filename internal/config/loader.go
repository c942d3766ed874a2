// Package config provides configuration management for quoteintake.
// Callers register defaults on a viper instance, layer files and the
// environment on top, and decode the result into a typed Config.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppName is used for config, data directories and the env prefix.
const AppName = "quoteintake"

// EnvPrefix prefixes every environment override (QUOTEINTAKE_SERVER_PORT, ...).
const EnvPrefix = "QUOTEINTAKE"

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key with its default value. Keys must be
// registered for viper to resolve their environment overrides.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.dsn", "")

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.sweep_interval", time.Minute)
	v.SetDefault("rate_limit.quote_request.window", 5*time.Minute)
	v.SetDefault("rate_limit.quote_request.max", 3)
	v.SetDefault("redis.url", "")

	v.SetDefault("notify.recipients", "")
	v.SetDefault("notify.function_url", "")
	v.SetDefault("notify.function_timeout", 30*time.Second)
	v.SetDefault("notify.frontend_url", "http://localhost:3000")
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.lang", "en")
	v.SetDefault("notify.currency", "CAD")
	v.SetDefault("notify.brand.name", "TMS Platform")
	v.SetDefault("notify.brand.primary_color", "#0F172A")
	v.SetDefault("notify.brand.header_bg", "#0F172A")
	v.SetDefault("notify.brand.header_fg", "#FFFFFF")

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@tms-platform.com")
	v.SetDefault("smtp.timeout", 60*time.Second)

	v.SetDefault("secrets.provider", "none")
	v.SetDefault("secrets.region", "")
	v.SetDefault("secrets.prefix", "")
	v.SetDefault("secrets.ttl", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
}

// BindEnv enables QUOTEINTAKE_* overrides with dots mapped to underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the settings held by v into a Config.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Notify.Recipients = cfg.Notify.RecipientList()
	if strings.TrimSpace(cfg.Store.Driver) == "libsql" &&
		strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "libsql":
	case "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.URL) == "" {
			return fmt.Errorf("redis.url is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("unsupported rate limit backend: %s", c.RateLimit.Backend)
	}

	if c.RateLimit.QuoteRequest.Max <= 0 || c.RateLimit.QuoteRequest.Window <= 0 {
		return fmt.Errorf("rate_limit.quote_request needs a positive window and max")
	}

	switch c.Secrets.Provider {
	case "none", "aws":
	default:
		return fmt.Errorf("unsupported secrets provider: %s", c.Secrets.Provider)
	}

	if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
		return fmt.Errorf("notify.queue_size and notify.workers must be positive")
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

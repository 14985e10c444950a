package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/graphcache/cache"
	"github.com/jonwraymond/graphcache/endpoint"
	"github.com/jonwraymond/graphcache/normalize"
	"github.com/jonwraymond/graphcache/observe"
	"github.com/jonwraymond/graphcache/resilience"
	"github.com/jonwraymond/graphcache/secret"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GRAPHCACHE_"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

// Usage sinks.
const (
	SinkLog  = "log"
	SinkNATS = "nats"
	SinkNone = "none"
)

var (
	// ErrInvalidConfig indicates a configuration value out of range.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrReadFile indicates the YAML file could not be read or decoded.
	ErrReadFile = errors.New("config: cannot read config file")

	// ErrSecret indicates the bypass credential could not be resolved.
	ErrSecret = errors.New("config: cannot resolve secret")
)

// Config is the complete gateway configuration.
type Config struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	Bypass     BypassConfig     `yaml:"bypass" envPrefix:"BYPASS_"`
	Upstream   UpstreamConfig   `yaml:"upstream" envPrefix:"UPSTREAM_"`
	Normalize  NormalizeConfig  `yaml:"normalize" envPrefix:"NORMALIZE_"`
	Cache      CacheConfig      `yaml:"cache" envPrefix:"CACHE_"`
	NATS       NATSConfig       `yaml:"nats" envPrefix:"NATS_"`
	Usage      UsageConfig      `yaml:"usage" envPrefix:"USAGE_"`
	Resilience ResilienceConfig `yaml:"resilience" envPrefix:"RESILIENCE_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Secrets    SecretsConfig    `yaml:"secrets" envPrefix:"SECRETS_"`
}

// BypassConfig configures the reserved identifier that selects the server credential.
type BypassConfig struct {
	Identifier string `yaml:"identifier" env:"IDENTIFIER"`
	Credential string `yaml:"credential" env:"CREDENTIAL"`
}

// UpstreamConfig configures calls to the query services.
type UpstreamConfig struct {
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxResponseBytes int64         `yaml:"max_response_bytes" env:"MAX_RESPONSE_BYTES"`
	UserAgent        string        `yaml:"user_agent" env:"USER_AGENT"`

	// Bases overrides upstream base URLs keyed by service type.
	Bases map[string]string `yaml:"bases" env:"BASES" envKeyValSeparator:"="`
}

// NormalizeConfig toggles the lossy normalization steps.
type NormalizeConfig struct {
	RemoveAliases bool `yaml:"remove_aliases" env:"REMOVE_ALIASES"`
	HideLiterals  bool `yaml:"hide_literals" env:"HIDE_LITERALS"`
}

// CacheConfig selects and tunes the cache store.
type CacheConfig struct {
	Backend        string        `yaml:"backend" env:"BACKEND"`
	TTL            time.Duration `yaml:"ttl" env:"TTL"`
	StoreTimeout   time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT"`
	CacheMutations bool          `yaml:"cache_mutations" env:"MUTATIONS"`
	CoalesceMisses bool          `yaml:"coalesce_misses" env:"COALESCE_MISSES"`

	SQLitePath string      `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Redis      RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
	NATSBucket string      `yaml:"nats_bucket" env:"NATS_BUCKET"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Username  string `yaml:"username" env:"USERNAME"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// NATSConfig configures the shared NATS connection.
type NATSConfig struct {
	URL  string `yaml:"url" env:"URL"`
	Name string `yaml:"name" env:"NAME"`
}

// UsageConfig configures usage event delivery.
type UsageConfig struct {
	Sink         string        `yaml:"sink" env:"SINK"`
	Subject      string        `yaml:"subject" env:"SUBJECT"`
	QueueSize    int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// ResilienceConfig guards upstream calls.
type ResilienceConfig struct {
	MaxFailures   int           `yaml:"max_failures" env:"MAX_FAILURES"`
	ResetTimeout  time.Duration `yaml:"reset_timeout" env:"RESET_TIMEOUT"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	RateLimit     float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	Burst         int           `yaml:"burst" env:"BURST"`
}

// TelemetryConfig configures logging, tracing and metrics.
type TelemetryConfig struct {
	ServiceName     string  `yaml:"service_name" env:"SERVICE_NAME"`
	LogLevel        string  `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat       string  `yaml:"log_format" env:"LOG_FORMAT"`
	TracingExporter string  `yaml:"tracing_exporter" env:"TRACING_EXPORTER"`
	SamplePct       float64 `yaml:"sample_pct" env:"SAMPLE_PCT"`
	MetricsExporter string  `yaml:"metrics_exporter" env:"METRICS_EXPORTER"`
}

// SecretsConfig configures secret reference resolution.
type SecretsConfig struct {
	// Dir is the directory the file provider reads from.
	Dir string `yaml:"dir" env:"DIR"`

	// Strict rejects secret references that resolve to an empty value.
	Strict bool `yaml:"strict" env:"STRICT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 15 * time.Second,
		Bypass: BypassConfig{
			Identifier: endpoint.DefaultBypassIdentifier,
		},
		Upstream: UpstreamConfig{
			Timeout:          30 * time.Second,
			MaxResponseBytes: 32 << 20,
		},
		Cache: CacheConfig{
			Backend:      BackendMemory,
			TTL:          cache.DefaultTTL,
			StoreTimeout: 2 * time.Second,
			SQLitePath:   "graphcache.db",
			NATSBucket:   "graphcache",
		},
		NATS: NATSConfig{Name: "graphcache"},
		Usage: UsageConfig{
			Sink:         SinkLog,
			Subject:      "graphcache.usage",
			QueueSize:    1024,
			WriteTimeout: 5 * time.Second,
		},
		Resilience: ResilienceConfig{
			MaxFailures:   5,
			ResetTimeout:  30 * time.Second,
			MaxConcurrent: 256,
		},
		Telemetry: TelemetryConfig{
			ServiceName:     "graphcache",
			LogLevel:        "info",
			LogFormat:       "json",
			TracingExporter: "none",
			SamplePct:       1.0,
			MetricsExporter: "prometheus",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment, validates it and resolves the bypass credential.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.resolveSecrets(ctx); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadFile, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadFile, path, err)
	}
	return nil
}

func (c *Config) resolveSecrets(ctx context.Context) error {
	if c.Bypass.Credential == "" {
		return nil
	}
	registry := secret.NewDefaultRegistry()
	resolver := secret.NewResolver(c.Secrets.Strict)
	defer resolver.Close()
	for _, name := range registry.List() {
		p, err := registry.Create(name, map[string]any{"dir": c.Secrets.Dir})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSecret, err)
		}
		resolver.Register(p)
	}

	v, err := resolver.ResolveValue(ctx, c.Bypass.Credential)
	if err != nil {
		return fmt.Errorf("%w: bypass credential: %w", ErrSecret, err)
	}
	c.Bypass.Credential = v
	return nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Addr == "" {
		invalid("addr is required")
	}
	if !slices.Contains([]string{BackendMemory, BackendSQLite, BackendRedis, BackendNATS}, c.Cache.Backend) {
		invalid("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendSQLite && c.Cache.SQLitePath == "" {
		invalid("cache.sqlite_path is required for the sqlite backend")
	}
	if c.Cache.Backend == BackendRedis && c.Cache.Redis.Addr == "" {
		invalid("cache.redis.addr is required for the redis backend")
	}
	if !slices.Contains([]string{SinkLog, SinkNATS, SinkNone}, c.Usage.Sink) {
		invalid("unknown usage sink %q", c.Usage.Sink)
	}
	if (c.Cache.Backend == BackendNATS || c.Usage.Sink == SinkNATS) && c.NATS.URL == "" {
		invalid("nats.url is required for the nats backend and sink")
	}
	if c.Cache.TTL < 0 || c.Cache.StoreTimeout < 0 || c.Upstream.Timeout < 0 {
		invalid("durations must not be negative")
	}
	if c.Bypass.Identifier == "" {
		invalid("bypass.identifier is required")
	}
	for name := range c.Upstream.Bases {
		if _, err := endpoint.ParseServiceType(name); err != nil {
			invalid("upstream.bases: %v", err)
		}
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: telemetry: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// ResolverConfig returns the endpoint resolver configuration.
func (c Config) ResolverConfig() endpoint.Config {
	bases := make(map[endpoint.ServiceType]string, len(c.Upstream.Bases))
	for name, base := range c.Upstream.Bases {
		bases[endpoint.ServiceType(name)] = base
	}
	return endpoint.Config{
		BypassIdentifier: c.Bypass.Identifier,
		Credential:       c.Bypass.Credential,
		Bases:            bases,
	}
}

// NormalizeOptions returns the normalizer options.
func (c Config) NormalizeOptions() normalize.Options {
	return normalize.Options{
		RemoveAliases: c.Normalize.RemoveAliases,
		HideLiterals:  c.Normalize.HideLiterals,
	}
}

// CachePolicy returns the cache policy. A zero TTL disables caching.
func (c Config) CachePolicy() cache.Policy {
	if c.Cache.TTL == 0 {
		return cache.Policy{TTL: -1}
	}
	return cache.Policy{TTL: c.Cache.TTL, CacheMutations: c.Cache.CacheMutations}
}

// BreakerConfig returns the per-service circuit breaker configuration.
func (c Config) BreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		MaxFailures:  c.Resilience.MaxFailures,
		ResetTimeout: c.Resilience.ResetTimeout,
	}
}

// ObserveConfig returns the telemetry configuration.
func (c Config) ObserveConfig() observe.Config {
	t := c.Telemetry
	return observe.Config{
		ServiceName: t.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   t.TracingExporter != "" && t.TracingExporter != "none",
			Exporter:  t.TracingExporter,
			SamplePct: t.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  t.MetricsExporter != "" && t.MetricsExporter != "none",
			Exporter: t.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   t.LogLevel,
			Format:  t.LogFormat,
		},
	}
}

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/graphcache/cache"
	"github.com/jonwraymond/graphcache/endpoint"
	"github.com/jonwraymond/graphcache/secret"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Cache.TTL != cache.DefaultTTL {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, cache.DefaultTTL)
	}
	if cfg.Bypass.Identifier != endpoint.DefaultBypassIdentifier {
		t.Errorf("Bypass.Identifier = %q", cfg.Bypass.Identifier)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Cache.Backend != BackendMemory {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "graphcache.yaml", `
addr: ":9090"
cache:
  backend: sqlite
  ttl: 60s
  sqlite_path: /tmp/gc.db
upstream:
  bases:
    hosted: http://hosted.local
telemetry:
  log_level: debug
`)
	t.Setenv("GRAPHCACHE_CACHE_TTL", "90s")
	t.Setenv("GRAPHCACHE_TELEMETRY_LOG_FORMAT", "console")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Cache.Backend != BackendSQLite || cfg.Cache.SQLitePath != "/tmp/gc.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want env override 90s", cfg.Cache.TTL)
	}
	if cfg.Telemetry.LogLevel != "debug" || cfg.Telemetry.LogFormat != "console" {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Cache.StoreTimeout != 2*time.Second {
		t.Errorf("unset values should keep defaults, StoreTimeout = %v", cfg.Cache.StoreTimeout)
	}
	if got := cfg.ResolverConfig().Bases[endpoint.Hosted]; got != "http://hosted.local" {
		t.Errorf("hosted base = %q", got)
	}
}

func TestLoad_EnvBases(t *testing.T) {
	t.Setenv("GRAPHCACHE_UPSTREAM_BASES", "studio=http://studio.local,gateway=http://gw.local")

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	bases := cfg.ResolverConfig().Bases
	if bases[endpoint.Studio] != "http://studio.local" || bases[endpoint.Gateway] != "http://gw.local" {
		t.Errorf("bases = %v", bases)
	}
}

func TestLoad_CredentialFromEnvSecretRef(t *testing.T) {
	t.Setenv("GRAPHCACHE_TEST_API_KEY", "s3cr3t")
	t.Setenv("GRAPHCACHE_BYPASS_CREDENTIAL", "secretref:env:GRAPHCACHE_TEST_API_KEY")

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bypass.Credential != "s3cr3t" {
		t.Errorf("Credential = %q, want resolved secret", cfg.Bypass.Credential)
	}
	if cfg.ResolverConfig().Credential != "s3cr3t" {
		t.Errorf("resolver credential not propagated")
	}
}

func TestLoad_CredentialFromFileSecretRef(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "api-key"), []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("GRAPHCACHE_SECRETS_DIR", dir)
	t.Setenv("GRAPHCACHE_BYPASS_CREDENTIAL", "secretref:file:api-key")

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bypass.Credential != "from-file" {
		t.Errorf("Credential = %q", cfg.Bypass.Credential)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("GRAPHCACHE_BYPASS_CREDENTIAL", "secretref:env:GRAPHCACHE_TEST_DOES_NOT_EXIST")

	_, err := Load(context.Background(), "")
	if !errors.Is(err, ErrSecret) || !errors.Is(err, secret.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrSecret wrapping secret.ErrNotFound", err)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrReadFile) {
		t.Errorf("missing file: error = %v, want ErrReadFile", err)
	}
	bad := writeFile(t, "bad.yaml", "cache: [unterminated")
	if _, err := Load(context.Background(), bad); !errors.Is(err, ErrReadFile) {
		t.Errorf("bad yaml: error = %v, want ErrReadFile", err)
	}
}

func TestLoad_EnvParseError(t *testing.T) {
	t.Setenv("GRAPHCACHE_CACHE_TTL", "soon")
	if _, err := Load(context.Background(), ""); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = BackendRedis }},
		{"nats backend without url", func(c *Config) { c.Cache.Backend = BackendNATS }},
		{"nats sink without url", func(c *Config) { c.Usage.Sink = SinkNATS }},
		{"unknown sink", func(c *Config) { c.Usage.Sink = "kafka" }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
		{"empty bypass identifier", func(c *Config) { c.Bypass.Identifier = "" }},
		{"unknown base type", func(c *Config) { c.Upstream.Bases = map[string]string{"graph": "http://x"} }},
		{"bad log level", func(c *Config) { c.Telemetry.LogLevel = "verbose" }},
		{"bad tracing exporter", func(c *Config) { c.Telemetry.TracingExporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestCachePolicy(t *testing.T) {
	cfg := Default()
	if p := cfg.CachePolicy(); p.TTL != cache.DefaultTTL || !p.Cacheable("query") || p.Cacheable("mutation") {
		t.Errorf("default policy = %+v", p)
	}

	cfg.Cache.CacheMutations = true
	if !cfg.CachePolicy().Cacheable("mutation") {
		t.Error("mutations should be cacheable when enabled")
	}

	cfg.Cache.TTL = 0
	if cfg.CachePolicy().ShouldCache() {
		t.Error("zero TTL should disable caching")
	}
}

func TestObserveConfig(t *testing.T) {
	cfg := Default()
	oc := cfg.ObserveConfig()
	if oc.Tracing.Enabled {
		t.Error("tracing exporter none should disable tracing")
	}
	if !oc.Metrics.Enabled || oc.Metrics.Exporter != "prometheus" {
		t.Errorf("metrics = %+v", oc.Metrics)
	}
	if !oc.Logging.Enabled || oc.Logging.Level != "info" {
		t.Errorf("logging = %+v", oc.Logging)
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cinecat/internal/cache"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"
	DefaultRegion  = "IN"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	TMDB      TMDBConfig      `yaml:"tmdb"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Address      string     `yaml:"address"`
	CORS         CORSConfig `yaml:"cors"`
	BlockedCIDRs []string   `yaml:"blockedCIDRs"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type TMDBConfig struct {
	APIKey         string               `yaml:"apiKey"`
	BaseURLs       []string             `yaml:"baseURLs"`
	Region         string               `yaml:"region"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures int           `yaml:"consecutiveFailures"`
	Cooldown            time.Duration `yaml:"cooldown"`
}

type CacheConfig struct {
	Enabled       *bool          `yaml:"enabled,omitempty"`
	TTL           *time.Duration `yaml:"ttl,omitempty"`
	SweepInterval time.Duration  `yaml:"sweepInterval"`
	Coalesce      *bool          `yaml:"coalesce,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		cfg.TMDB.APIKey = v
	}
	if v := os.Getenv("CINECAT_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}

	if len(cfg.TMDB.BaseURLs) == 0 {
		cfg.TMDB.BaseURLs = []string{DefaultBaseURL}
	}
	if cfg.TMDB.Region == "" {
		cfg.TMDB.Region = DefaultRegion
	}
	if cfg.TMDB.Timeout <= 0 {
		cfg.TMDB.Timeout = 10 * time.Second
	}
	if cfg.TMDB.CircuitBreaker.ConsecutiveFailures <= 0 {
		cfg.TMDB.CircuitBreaker.ConsecutiveFailures = 5
	}
	if cfg.TMDB.CircuitBreaker.Cooldown <= 0 {
		cfg.TMDB.CircuitBreaker.Cooldown = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "cinecat"
	}
}

func (cfg *Config) validate() error {
	if cfg.TMDB.APIKey == "" {
		return errors.New("tmdb.apiKey (or TMDB_API_KEY) is required")
	}
	for _, raw := range cfg.TMDB.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse tmdb base URL %q: %w", raw, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("tmdb base URL %q must be an absolute http(s) URL", raw)
		}
	}
	if cfg.Cache.TTL != nil && *cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", *cfg.Cache.TTL)
	}
	if cfg.Cache.SweepInterval < 0 {
		return fmt.Errorf("cache.sweepInterval must not be negative, got %v", cfg.Cache.SweepInterval)
	}
	return nil
}

func (cfg *Config) CacheEnabled() bool {
	if cfg.Cache.Enabled != nil {
		return *cfg.Cache.Enabled
	}
	return true
}

// CacheTTL is the freshness window, or 0 when caching is disabled.
func (cfg *Config) CacheTTL() time.Duration {
	if !cfg.CacheEnabled() {
		return 0
	}
	if cfg.Cache.TTL != nil {
		return *cfg.Cache.TTL
	}
	return cache.DefaultTTL
}

func (cfg *Config) CacheCoalesce() bool {
	if cfg.Cache.Coalesce != nil {
		return *cfg.Cache.Coalesce
	}
	return true
}

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	Poller     PollerConfig     `mapstructure:"poller"`
	RouteCache RouteCacheConfig `mapstructure:"route_cache"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BackendConfig points at the authoritative trip backend.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Timeout in seconds for a single request.
	Timeout int `mapstructure:"timeout"`
	// PollIntervalMs spaces generation-status requests.
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
}

// RoutingConfig points at an OSRM-compatible route service.
type RoutingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Profile string `mapstructure:"profile"`
	Timeout int    `mapstructure:"timeout"`
}

type PollerConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	// Source is "backend" (HTTP polling) or "nats" (pushed status events).
	Source string `mapstructure:"source"`
}

type RouteCacheConfig struct {
	TTLSeconds int  `mapstructure:"ttl_seconds"`
	Shared     bool `mapstructure:"shared"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 90)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("backend.base_url", "http://localhost:9000/api")
	v.SetDefault("backend.timeout", 15)
	v.SetDefault("backend.poll_interval_ms", 1500)
	v.SetDefault("routing.base_url", "http://localhost:5000")
	v.SetDefault("routing.profile", "foot")
	v.SetDefault("routing.timeout", 10)
	v.SetDefault("poller.max_attempts", 8)
	v.SetDefault("poller.source", "backend")
	v.SetDefault("route_cache.ttl_seconds", 3600)
	v.SetDefault("route_cache.shared", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "segment-generation")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TRIPLINE_BACKEND_BASE_URL → backend.base_url
	v.SetEnvPrefix("TRIPLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if err := validURL(c.Backend.BaseURL); err != nil {
		errs = append(errs, "backend.base_url "+err.Error())
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, "backend.timeout must be positive")
	}
	if c.Backend.PollIntervalMs <= 0 {
		errs = append(errs, "backend.poll_interval_ms must be positive")
	}
	if err := validURL(c.Routing.BaseURL); err != nil {
		errs = append(errs, "routing.base_url "+err.Error())
	}
	if c.Routing.Profile == "" {
		errs = append(errs, "routing.profile is required")
	}
	if c.Poller.MaxAttempts <= 0 {
		errs = append(errs, fmt.Sprintf("poller.max_attempts must be positive, got %d", c.Poller.MaxAttempts))
	}
	switch c.Poller.Source {
	case "backend":
	case "nats":
		if c.NATS.URL == "" {
			errs = append(errs, "nats.url is required when poller.source is nats")
		}
	default:
		errs = append(errs, fmt.Sprintf("poller.source must be backend or nats, got %q", c.Poller.Source))
	}
	if c.RouteCache.TTLSeconds <= 0 {
		errs = append(errs, "route_cache.ttl_seconds must be positive")
	}
	if c.RouteCache.Shared && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when route_cache.shared is set")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL, got %q", raw)
	}
	return nil
}

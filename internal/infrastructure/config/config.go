package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	API       APIConfig
	Session   SessionConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Search    SearchConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// APIConfig describes the remote membership API this client talks to
type APIConfig struct {
	// BaseURL is mandatory in production. In development it falls back to DevProxyURL.
	BaseURL     string
	DevProxyURL string
	ServiceID   string // Client-Service header
	AuthKey     string // Auth-Key header
	RoutingURL  string // rurl header
	// LoginTimeout bounds the login call; RequestTimeout bounds ordinary resource calls.
	// The shared http.Client itself has no global timeout.
	LoginTimeout   time.Duration
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second, 0 disables throttling
	RateBurst      int
	MaxRetries     int
	TLSSkipVerify  bool
}

// SessionConfig selects where session state (token, uid, caches) is persisted
type SessionConfig struct {
	Backend    string // memory, redis, sqlite
	SQLitePath string
	KeyPrefix  string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds cached resource settings
type CacheConfig struct {
	Duration time.Duration
}

// SearchConfig holds global search settings
type SearchConfig struct {
	Debounce       time.Duration
	MaxResults     int
	MinQueryLength int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds the local gateway server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	CORSAllowOrigins []string
}

// TelemetryConfig holds tracing and metrics configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PORTAL_ prefix (e.g., PORTAL_API_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/portal")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		API: APIConfig{
			BaseURL:        v.GetString("api.base_url"),
			DevProxyURL:    v.GetString("api.dev_proxy_url"),
			ServiceID:      v.GetString("api.service_id"),
			AuthKey:        v.GetString("api.auth_key"),
			RoutingURL:     v.GetString("api.routing_url"),
			LoginTimeout:   v.GetDuration("api.login_timeout"),
			RequestTimeout: v.GetDuration("api.request_timeout"),
			RateLimit:      v.GetFloat64("api.rate_limit"),
			RateBurst:      v.GetInt("api.rate_burst"),
			MaxRetries:     v.GetInt("api.max_retries"),
			TLSSkipVerify:  v.GetBool("api.tls_skip_verify"),
		},
		Session: SessionConfig{
			Backend:    v.GetString("session.backend"),
			SQLitePath: v.GetString("session.sqlite_path"),
			KeyPrefix:  v.GetString("session.key_prefix"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Duration: v.GetDuration("cache.duration"),
		},
		Search: SearchConfig{
			Debounce:       v.GetDuration("search.debounce"),
			MaxResults:     v.GetInt("search.max_results"),
			MinQueryLength: v.GetInt("search.min_query_length"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "member-portal"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8090"
	}
	if cfg.API.DevProxyURL == "" {
		cfg.API.DevProxyURL = "http://localhost:3000/api"
	}
	// NOTE: BaseURL deliberately has no hardcoded fallback host outside development.
	if cfg.API.BaseURL == "" && cfg.App.Env != "production" {
		cfg.API.BaseURL = cfg.API.DevProxyURL
	}
	if cfg.API.LoginTimeout == 0 {
		cfg.API.LoginTimeout = 15 * time.Second
	}
	if cfg.API.RequestTimeout == 0 {
		cfg.API.RequestTimeout = 10 * time.Second
	}
	if cfg.API.RateBurst == 0 {
		cfg.API.RateBurst = 10
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.SQLitePath == "" {
		cfg.Session.SQLitePath = "portal-session.db"
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "portal:session:"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.Duration == 0 {
		cfg.Cache.Duration = 24 * time.Hour
	}
	if cfg.Search.Debounce == 0 {
		cfg.Search.Debounce = 300 * time.Millisecond
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 10
	}
	if cfg.Search.MinQueryLength == 0 {
		cfg.Search.MinQueryLength = 2
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Bulk operations proxied through the gateway can be slow; keep the write side generous.
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "member-portal"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Session.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("session.backend must be one of memory, redis, sqlite, got %q", c.Session.Backend)
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit cannot be negative")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries cannot be negative")
	}

	if c.App.Env == "production" {
		if c.API.BaseURL == "" {
			return fmt.Errorf("api.base_url is required in production")
		}
		if c.API.TLSSkipVerify {
			return fmt.Errorf("api.tls_skip_verify must be false in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url is invalid: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsProduction reports whether the app runs with production settings
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}

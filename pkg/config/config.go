package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway
type Config struct {
	API       APIConfig
	Auth      AuthConfig
	Server    ServerConfig
	Redis     RedisConfig
	Mirror    MirrorConfig
	Feed      FeedConfig
	Notify    NotifyConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// APIConfig holds remote Freebies backend configuration
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AuthConfig holds the bearer token issued by the remote backend.
// An empty token means anonymous browsing.
type AuthConfig struct {
	Token string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL     string
	Enabled bool
}

// MirrorConfig holds map-view mirror configuration
type MirrorConfig struct {
	DatabaseURL  string
	SyncInterval time.Duration
	Enabled      bool
}

// FeedConfig holds feed aggregation configuration
type FeedConfig struct {
	SearchDebounce    time.Duration
	SearchLimit       int
	AnnotationWorkers int
	CacheTTL          time.Duration
}

// NotifyConfig holds notification polling configuration
type NotifyConfig struct {
	PollInterval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	// Load from environment
	viper.SetEnvPrefix("FREEBIES")
	viper.AutomaticEnv()

	// Load from config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.freebies")
	viper.AddConfigPath("/etc/freebies")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL: getString("api_url", "http://localhost:8000"),
			Timeout: getDuration("api_timeout", 10*time.Second),
		},
		Auth: AuthConfig{
			Token: getString("auth_token", ""),
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8090),
			Host: getString("http_server_host", "0.0.0.0"),
		},
		Redis: RedisConfig{
			URL:     getString("redis_url", ""),
			Enabled: getString("redis_url", "") != "",
		},
		Mirror: MirrorConfig{
			DatabaseURL:  getString("mirror_database_url", ""),
			SyncInterval: getDuration("mirror_sync_interval", 60*time.Second),
			Enabled:      getString("mirror_database_url", "") != "",
		},
		Feed: FeedConfig{
			SearchDebounce:    getDuration("search_debounce", 500*time.Millisecond),
			SearchLimit:       getInt("search_limit", 10),
			AnnotationWorkers: getInt("annotation_workers", 8),
			CacheTTL:          getDuration("feed_cache_ttl", 15*time.Second),
		},
		Notify: NotifyConfig{
			PollInterval: getDuration("notify_poll_interval", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getString("log_level", "INFO"),
			Format: getString("log_format", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", false),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "freebies-gateway"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("api_url", "http://localhost:8000")
	viper.SetDefault("api_timeout", "10s")
	viper.SetDefault("http_server_port", 8090)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("search_debounce", "500ms")
	viper.SetDefault("search_limit", 10)
	viper.SetDefault("annotation_workers", 8)
	viper.SetDefault("feed_cache_ttl", "15s")
	viper.SetDefault("notify_poll_interval", "30s")
	viper.SetDefault("mirror_sync_interval", "60s")
	viper.SetDefault("telemetry_enabled", false)
	viper.SetDefault("prometheus_enabled", false)
	viper.SetDefault("prometheus_port", 9090)
	viper.SetDefault("service_name", "freebies-gateway")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv("FREEBIES_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv("FREEBIES_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv("FREEBIES_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	if val := os.Getenv("FREEBIES_" + toEnvKey(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

func toEnvKey(key string) string {
	// Convert snake_case to UPPER_SNAKE_CASE
	result := ""
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result += "_"
		}
		if r == '-' || r == '_' {
			result += "_"
		} else {
			result += string(r)
		}
	}
	return result
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api_timeout must be positive")
	}
	if c.Feed.SearchLimit <= 0 || c.Feed.SearchLimit > 100 {
		return fmt.Errorf("search_limit must be between 1 and 100")
	}
	if c.Feed.AnnotationWorkers <= 0 || c.Feed.AnnotationWorkers > 64 {
		return fmt.Errorf("annotation_workers must be between 1 and 64")
	}
	if c.Feed.SearchDebounce < 0 {
		return fmt.Errorf("search_debounce must not be negative")
	}
	if c.Notify.PollInterval <= 0 {
		return fmt.Errorf("notify_poll_interval must be positive")
	}
	return nil
}

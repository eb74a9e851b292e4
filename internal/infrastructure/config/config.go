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
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Retry     RetryConfig
	Sync      SyncConfig
	WhatsApp  ChannelConfig
	Instagram ChannelConfig
	Dedup     DedupConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// RetryConfig holds the shared retry policy for webhook processing and
// platform API calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// SyncConfig holds the background message sync scheduler configuration
type SyncConfig struct {
	Enabled            bool
	CronSchedule       string
	BatchLimit         int           // max messages pulled per sync run
	JobTimeout         time.Duration // per-connection sync deadline
	TokenRefreshWindow time.Duration // refresh tokens expiring within this window
}

// ChannelConfig holds per-platform messaging API credentials and endpoints.
// AppSecret signs webhook payloads; VerifyToken gates subscription handshakes.
type ChannelConfig struct {
	Enabled     bool
	APIBaseURL  string
	APIVersion  string
	AppID       string
	AppSecret   string
	VerifyToken string
	HTTPTimeout time.Duration
}

// DedupConfig holds webhook delivery deduplication settings
type DedupConfig struct {
	Enabled bool
	Backend string // memory, redis
	TTL     time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CHATWIRE_ prefix (e.g., CHATWIRE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("CHATWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Retry: RetryConfig{
			MaxRetries: v.GetInt("retry.max_retries"),
			BaseDelay:  v.GetDuration("retry.base_delay"),
			MaxDelay:   v.GetDuration("retry.max_delay"),
		},
		Sync: SyncConfig{
			Enabled:            v.GetBool("sync.enabled"),
			CronSchedule:       v.GetString("sync.cron_schedule"),
			BatchLimit:         v.GetInt("sync.batch_limit"),
			JobTimeout:         v.GetDuration("sync.job_timeout"),
			TokenRefreshWindow: v.GetDuration("sync.token_refresh_window"),
		},
		WhatsApp: ChannelConfig{
			Enabled:     v.GetBool("whatsapp.enabled"),
			APIBaseURL:  v.GetString("whatsapp.api_base_url"),
			APIVersion:  v.GetString("whatsapp.api_version"),
			AppID:       v.GetString("whatsapp.app_id"),
			AppSecret:   v.GetString("whatsapp.app_secret"),
			VerifyToken: v.GetString("whatsapp.verify_token"),
			HTTPTimeout: v.GetDuration("whatsapp.http_timeout"),
		},
		Instagram: ChannelConfig{
			Enabled:     v.GetBool("instagram.enabled"),
			APIBaseURL:  v.GetString("instagram.api_base_url"),
			APIVersion:  v.GetString("instagram.api_version"),
			AppSecret:   v.GetString("instagram.app_secret"),
			VerifyToken: v.GetString("instagram.verify_token"),
			HTTPTimeout: v.GetDuration("instagram.http_timeout"),
		},
		Dedup: DedupConfig{
			Enabled: v.GetBool("dedup.enabled"),
			Backend: v.GetString("dedup.backend"),
			TTL:     v.GetDuration("dedup.ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
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
		cfg.App.Name = "chatwire-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "chatwire"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
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
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 5 << 20 // 5MB, webhook payloads are small
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Sync.CronSchedule == "" {
		cfg.Sync.CronSchedule = "*/5 * * * *"
	}
	if cfg.Sync.BatchLimit == 0 {
		cfg.Sync.BatchLimit = 100
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 5 * time.Minute
	}
	if cfg.Sync.TokenRefreshWindow == 0 {
		cfg.Sync.TokenRefreshWindow = 72 * time.Hour
	}
	if cfg.WhatsApp.APIBaseURL == "" {
		cfg.WhatsApp.APIBaseURL = "https://graph.facebook.com"
	}
	if cfg.WhatsApp.APIVersion == "" {
		cfg.WhatsApp.APIVersion = "v19.0"
	}
	if cfg.WhatsApp.HTTPTimeout == 0 {
		cfg.WhatsApp.HTTPTimeout = 30 * time.Second
	}
	if cfg.Instagram.APIBaseURL == "" {
		cfg.Instagram.APIBaseURL = "https://graph.instagram.com"
	}
	if cfg.Instagram.APIVersion == "" {
		cfg.Instagram.APIVersion = "v19.0"
	}
	if cfg.Instagram.HTTPTimeout == 0 {
		cfg.Instagram.HTTPTimeout = 30 * time.Second
	}
	if cfg.Dedup.Backend == "" {
		cfg.Dedup.Backend = "memory"
	}
	if cfg.Dedup.TTL == 0 {
		cfg.Dedup.TTL = 24 * time.Hour
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "chatwire-backend"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.base_delay (%s) cannot exceed retry.max_delay (%s)",
			c.Retry.BaseDelay, c.Retry.MaxDelay)
	}

	switch c.Dedup.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("dedup.backend must be 'memory' or 'redis', got %q", c.Dedup.Backend)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.WhatsApp.Enabled && c.WhatsApp.AppSecret == "" {
			return fmt.Errorf("whatsapp.app_secret is required in production when whatsapp is enabled")
		}
		if c.WhatsApp.Enabled && c.WhatsApp.VerifyToken == "" {
			return fmt.Errorf("whatsapp.verify_token is required in production when whatsapp is enabled")
		}
		if c.Instagram.Enabled && c.Instagram.AppSecret == "" {
			return fmt.Errorf("instagram.app_secret is required in production when instagram is enabled")
		}
		if c.Instagram.Enabled && c.Instagram.VerifyToken == "" {
			return fmt.Errorf("instagram.verify_token is required in production when instagram is enabled")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Channel returns the channel configuration for a platform key
// ("whatsapp" or "instagram"); ok is false for anything else.
func (c *Config) Channel(platform string) (ChannelConfig, bool) {
	switch strings.ToLower(platform) {
	case "whatsapp":
		return c.WhatsApp, true
	case "instagram":
		return c.Instagram, true
	default:
		return ChannelConfig{}, false
	}
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

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
	Kafka     KafkaConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Sync      SyncConfig
	Platform  PlatformConfig
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

// RedisConfig holds Redis connection settings. An empty Host disables
// Redis; delivery dedupe then falls back to memory and the reconciliation
// lock to a local one.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Enabled reports whether a Redis server is configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds the optional event ingestion consumer settings
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
	// AdminToken guards /api/v1; empty disables the admin API
	AdminToken string
}

// SyncConfig tunes the synchronisation engine
type SyncConfig struct {
	// EchoWindow is the loop-prevention window between opposite writes
	EchoWindow time.Duration
	// ReconcileInterval is the period of the reconciliation sweep
	ReconcileInterval time.Duration
	// ReconcileWindow is how far back each sweep re-derives orders
	ReconcileWindow      time.Duration
	ReconcileConcurrency int
	TenantTimeout        time.Duration
	// ReconcileLockTTL bounds how long a replica holds the sweep lock
	ReconcileLockTTL time.Duration
	// Order-sync queue
	Workers           int
	QueueSize         int
	JobTimeout        time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	EnqueueMaxWait    time.Duration
	DeliveryDedupeTTL time.Duration
}

// PlatformConfig holds commerce platform Admin API settings
type PlatformConfig struct {
	// BaseURLTemplate is formatted with the tenant's shop domain
	BaseURLTemplate string
	APIVersion      string
	Timeout         time.Duration
	PageSize        int
	MaxPages        int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOCKSYNC_ prefix (e.g., STOCKSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/stocksync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STOCKSYNC")
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
		Kafka: KafkaConfig{
			Enabled:  v.GetBool("kafka.enabled"),
			Brokers:  v.GetStringSlice("kafka.brokers"),
			Topic:    v.GetString("kafka.topic"),
			GroupID:  v.GetString("kafka.group_id"),
			MinBytes: v.GetInt("kafka.min_bytes"),
			MaxBytes: v.GetInt("kafka.max_bytes"),
			MaxWait:  v.GetDuration("kafka.max_wait"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
			AdminToken:      v.GetString("http.admin_token"),
		},
		Sync: SyncConfig{
			EchoWindow:           v.GetDuration("sync.echo_window"),
			ReconcileInterval:    v.GetDuration("sync.reconcile_interval"),
			ReconcileWindow:      v.GetDuration("sync.reconcile_window"),
			ReconcileConcurrency: v.GetInt("sync.reconcile_concurrency"),
			TenantTimeout:        v.GetDuration("sync.tenant_timeout"),
			ReconcileLockTTL:     v.GetDuration("sync.reconcile_lock_ttl"),
			Workers:              v.GetInt("sync.workers"),
			QueueSize:            v.GetInt("sync.queue_size"),
			JobTimeout:           v.GetDuration("sync.job_timeout"),
			MaxRetries:           v.GetInt("sync.max_retries"),
			RetryBaseDelay:       v.GetDuration("sync.retry_base_delay"),
			RetryMaxDelay:        v.GetDuration("sync.retry_max_delay"),
			EnqueueMaxWait:       v.GetDuration("sync.enqueue_max_wait"),
			DeliveryDedupeTTL:    v.GetDuration("sync.delivery_dedupe_ttl"),
		},
		Platform: PlatformConfig{
			BaseURLTemplate: v.GetString("platform.base_url_template"),
			APIVersion:      v.GetString("platform.api_version"),
			Timeout:         v.GetDuration("platform.timeout"),
			PageSize:        v.GetInt("platform.page_size"),
			MaxPages:        v.GetInt("platform.max_pages"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
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
		cfg.App.Name = "stocksync"
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
		cfg.Database.DBName = "stocksync"
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
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "platform-events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "stocksync"
	}
	if cfg.Kafka.MinBytes == 0 {
		cfg.Kafka.MinBytes = 1
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = 10 << 20
	}
	if cfg.Kafka.MaxWait == 0 {
		cfg.Kafka.MaxWait = time.Second
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
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 5 << 20 // 5MB
	}
	if cfg.Sync.EchoWindow == 0 {
		cfg.Sync.EchoWindow = 30 * time.Second
	}
	if cfg.Sync.ReconcileInterval == 0 {
		cfg.Sync.ReconcileInterval = time.Hour
	}
	if cfg.Sync.ReconcileWindow == 0 {
		cfg.Sync.ReconcileWindow = 2 * time.Hour
	}
	if cfg.Sync.ReconcileConcurrency == 0 {
		cfg.Sync.ReconcileConcurrency = 4
	}
	if cfg.Sync.TenantTimeout == 0 {
		cfg.Sync.TenantTimeout = 10 * time.Minute
	}
	if cfg.Sync.ReconcileLockTTL == 0 {
		cfg.Sync.ReconcileLockTTL = 50 * time.Minute
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.QueueSize == 0 {
		cfg.Sync.QueueSize = 256
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 2 * time.Minute
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.RetryBaseDelay == 0 {
		cfg.Sync.RetryBaseDelay = time.Second
	}
	if cfg.Sync.RetryMaxDelay == 0 {
		cfg.Sync.RetryMaxDelay = 30 * time.Second
	}
	if cfg.Sync.EnqueueMaxWait == 0 {
		cfg.Sync.EnqueueMaxWait = 5 * time.Second
	}
	if cfg.Sync.DeliveryDedupeTTL == 0 {
		cfg.Sync.DeliveryDedupeTTL = 24 * time.Hour
	}
	if cfg.Platform.BaseURLTemplate == "" {
		cfg.Platform.BaseURLTemplate = "https://%s/admin/api"
	}
	if cfg.Platform.APIVersion == "" {
		cfg.Platform.APIVersion = "2024-01"
	}
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 15 * time.Second
	}
	if cfg.Platform.PageSize == 0 {
		cfg.Platform.PageSize = 250
	}
	if cfg.Platform.MaxPages == 0 {
		cfg.Platform.MaxPages = 40
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "stocksync"
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

	if c.Sync.EchoWindow < 0 {
		return fmt.Errorf("sync.echo_window cannot be negative")
	}
	if c.Sync.Workers < 0 || c.Sync.QueueSize < 0 {
		return fmt.Errorf("sync.workers and sync.queue_size cannot be negative")
	}
	if c.Sync.RetryBaseDelay > c.Sync.RetryMaxDelay {
		return fmt.Errorf("sync.retry_base_delay (%s) cannot exceed sync.retry_max_delay (%s)",
			c.Sync.RetryBaseDelay, c.Sync.RetryMaxDelay)
	}
	if c.Sync.ReconcileWindow < c.Sync.ReconcileInterval {
		return fmt.Errorf("sync.reconcile_window (%s) must cover sync.reconcile_interval (%s)",
			c.Sync.ReconcileWindow, c.Sync.ReconcileInterval)
	}
	if !strings.Contains(c.Platform.BaseURLTemplate, "%s") {
		return fmt.Errorf("platform.base_url_template must contain %%s for the shop domain")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.enabled is true")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.HTTP.AdminToken != "" && len(c.HTTP.AdminToken) < 32 {
			return fmt.Errorf("http.admin_token must be at least 32 characters in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration for the call-screener service
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Phone       PhoneConfig       `mapstructure:"phone"`
	Screening   ScreeningConfig   `mapstructure:"screening"`
	Thresholds  ThresholdConfig   `mapstructure:"thresholds"`
	Reputation  ReputationConfig  `mapstructure:"reputation"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Behavior    BehaviorConfig    `mapstructure:"behavior"`
	Entitlement EntitlementConfig `mapstructure:"entitlement"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	FollowUp    FollowUpConfig    `mapstructure:"followup"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	// Driver is "postgres" (Postgres + Redis) or "memory" (embedded, single device)
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig contains PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains Redis configuration for the list cache and event store
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	ListCacheTTL time.Duration `mapstructure:"list_cache_ttl"`
}

// PhoneConfig controls number normalization and hashing
type PhoneConfig struct {
	// HomePrefix is the home calling-code prefix, e.g. "+91"
	HomePrefix string `mapstructure:"home_prefix"`
	// Salt is the application-wide HMAC key; stable per installation
	Salt string `mapstructure:"salt"`
}

// ScreeningConfig controls the decision pipeline boundary
type ScreeningConfig struct {
	Deadline time.Duration `mapstructure:"deadline"`
	Timezone string        `mapstructure:"timezone"`
}

// ThresholdConfig holds reputation score cut-offs
type ThresholdConfig struct {
	MinReportersToAct int     `mapstructure:"min_reporters_to_act"`
	Block             float64 `mapstructure:"block"`
	Flag              float64 `mapstructure:"flag"`
	AutoBlock         float64 `mapstructure:"auto_block"`
}

// ReputationConfig contains the remote reputation service configuration
type ReputationConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	DeviceToken string        `mapstructure:"device_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BreakerConfig configures the circuit breaker guarding the reputation service
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// BehaviorConfig configures the rolling event store and anomaly thresholds
type BehaviorConfig struct {
	// Action is "off", "flag" or "silence"
	Action             string        `mapstructure:"action"`
	Retention          time.Duration `mapstructure:"retention"`
	CapPerHash         int           `mapstructure:"cap_per_hash"`
	FrequencyWindow    time.Duration `mapstructure:"frequency_window"`
	FrequencyThreshold int           `mapstructure:"frequency_threshold"`
	BurstWindow        time.Duration `mapstructure:"burst_window"`
	BurstThreshold     int           `mapstructure:"burst_threshold"`
	ShortRingWindow    time.Duration `mapstructure:"short_ring_window"`
	ShortRingThreshold int           `mapstructure:"short_ring_threshold"`
	ShortRingDuration  time.Duration `mapstructure:"short_ring_duration"`
}

// EntitlementConfig supplies the premium tier flag
type EntitlementConfig struct {
	Premium bool `mapstructure:"premium"`
}

// NotifyConfig configures decision notifications
type NotifyConfig struct {
	// Driver is "redis" (pub/sub) or "log"
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}

// FollowUpConfig configures the post-decision worker pool
type FollowUpConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// AuditConfig configures the management audit trail
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	MaxEvents  int  `mapstructure:"max_events"`
}

// MetricsConfig contains monitoring and metrics configuration
type MetricsConfig struct {
	Enabled          bool      `mapstructure:"enabled"`
	Path             string    `mapstructure:"path"`
	HistogramBuckets []float64 `mapstructure:"histogram_buckets"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// ZapConfig builds the zap configuration for these settings. An empty level
// means info and an empty encoding keeps the preset's default.
func (c LoggingConfig) ZapConfig() (zap.Config, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid logging level: %w", err)
	}
	zc.Level = level

	switch c.Encoding {
	case "":
	case "json", "console":
		zc.Encoding = c.Encoding
	default:
		return zap.Config{}, fmt.Errorf("unknown logging encoding: %q", c.Encoding)
	}
	return zc, nil
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Environment variable binding
	v.SetEnvPrefix("CALL_SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; continue with environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3010)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.driver", "postgres")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "call_screener")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.query_timeout", "30s")
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 2)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.max_retries", 1)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.read_timeout", "200ms")
	v.SetDefault("redis.write_timeout", "200ms")
	v.SetDefault("redis.idle_timeout", "5m")
	v.SetDefault("redis.list_cache_ttl", "10m")

	// Phone defaults
	v.SetDefault("phone.home_prefix", "+1")
	v.SetDefault("phone.salt", "")

	// Screening defaults
	v.SetDefault("screening.deadline", "1400ms")
	v.SetDefault("screening.timezone", "Local")

	v.SetDefault("thresholds.min_reporters_to_act", 3)
	v.SetDefault("thresholds.block", 0.7)
	v.SetDefault("thresholds.flag", 0.4)
	v.SetDefault("thresholds.auto_block", 0.9)

	// Reputation defaults
	v.SetDefault("reputation.enabled", true)
	v.SetDefault("reputation.base_url", "")
	v.SetDefault("reputation.api_key", "")
	v.SetDefault("reputation.device_token", "")
	v.SetDefault("reputation.timeout", "1200ms")

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.window", "60s")
	v.SetDefault("breaker.cooldown", "30s")

	// Behavior defaults
	v.SetDefault("behavior.action", "off")
	v.SetDefault("behavior.retention", "24h")
	v.SetDefault("behavior.cap_per_hash", 100)
	v.SetDefault("behavior.frequency_window", "60m")
	v.SetDefault("behavior.frequency_threshold", 3)
	v.SetDefault("behavior.burst_window", "15m")
	v.SetDefault("behavior.burst_threshold", 5)
	v.SetDefault("behavior.short_ring_window", "24h")
	v.SetDefault("behavior.short_ring_threshold", 2)
	v.SetDefault("behavior.short_ring_duration", "8s")

	v.SetDefault("entitlement.premium", false)

	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.channel", "call-screener:notifications")

	v.SetDefault("followup.workers", 2)
	v.SetDefault("followup.queue_size", 256)
	v.SetDefault("followup.timeout", "5s")

	// Audit defaults
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", 256)
	v.SetDefault("audit.max_events", 1000)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.histogram_buckets", []float64{
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 1.4, 2.5,
	})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.encoding", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Driver {
	case "postgres":
		if config.Database.MaxConnections <= 0 {
			return fmt.Errorf("database max_connections must be positive")
		}
		if config.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis pool_size must be positive")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver: %q", config.Storage.Driver)
	}

	if config.Phone.Salt == "" {
		return fmt.Errorf("phone salt must be set")
	}
	if !strings.HasPrefix(config.Phone.HomePrefix, "+") || len(config.Phone.HomePrefix) < 2 {
		return fmt.Errorf("phone home_prefix must look like +<calling code>")
	}

	if config.Screening.Deadline <= 0 {
		return fmt.Errorf("screening deadline must be positive")
	}
	if config.Reputation.Timeout <= 0 || config.Reputation.Timeout >= config.Screening.Deadline {
		return fmt.Errorf("reputation timeout must be positive and below the screening deadline")
	}

	for name, t := range map[string]float64{
		"block":      config.Thresholds.Block,
		"flag":       config.Thresholds.Flag,
		"auto_block": config.Thresholds.AutoBlock,
	} {
		if t < 0 || t > 1 {
			return fmt.Errorf("thresholds %s must be between 0 and 1", name)
		}
	}

	if config.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("breaker failure_threshold must be positive")
	}

	switch config.Behavior.Action {
	case "off", "flag", "silence":
	default:
		return fmt.Errorf("unknown behavior action: %q", config.Behavior.Action)
	}
	if config.Behavior.CapPerHash <= 0 {
		return fmt.Errorf("behavior cap_per_hash must be positive")
	}

	switch config.Notify.Driver {
	case "log", "redis":
	default:
		return fmt.Errorf("unknown notify driver: %q", config.Notify.Driver)
	}

	if config.FollowUp.Workers <= 0 || config.FollowUp.QueueSize <= 0 {
		return fmt.Errorf("followup workers and queue_size must be positive")
	}

	if config.Audit.Enabled && (config.Audit.BufferSize <= 0 || config.Audit.MaxEvents <= 0) {
		return fmt.Errorf("audit buffer_size and max_events must be positive")
	}

	if _, err := config.Logging.ZapConfig(); err != nil {
		return err
	}

	return nil
}

// NewConfig creates a new configuration instance
func NewConfig() (*Config, error) {
	return Load()
}

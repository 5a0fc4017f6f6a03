package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
)

// ENV_PREFIX is the prefix of every environment variable read by the services
const ENV_PREFIX = "FF_WEBHOOK"

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // e.g., "5m", "1h"
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // e.g., "10m", "30m"
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`    // How long to keep retrying an unreachable database at startup
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	ConsumerName   string        `mapstructure:"consumer_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	AckWait        time.Duration `mapstructure:"ack_wait"`
	MaxDeliver     int           `mapstructure:"max_deliver"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
	// CORSAllowedOrigins restricts browser origins; empty allows all
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string `mapstructure:"jwt_public_key"`
	// APIKeys entries are "<key>" or "<organization_id>:<key>"
	APIKeys []string `mapstructure:"api_keys"`
}

// DeliveryConfig holds outbound HTTP settings for webhook delivery
type DeliveryConfig struct {
	HTTPTimeout time.Duration   `mapstructure:"http_timeout"`
	UserAgent   string          `mapstructure:"user_agent"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds per target host outbound limits. A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxWait           time.Duration `mapstructure:"max_wait"`
}

// RetryConfig holds backoff settings for failed deliveries
type RetryConfig struct {
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	DefaultMaxAttempts int           `mapstructure:"default_max_attempts"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	WorkerPoolSize int `mapstructure:"pool_size"`
}

// SchedulerConfig holds retry scheduler loop configuration
type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	ClaimTimeout time.Duration `mapstructure:"claim_timeout"`
	Worker       WorkerConfig  `mapstructure:"worker"`
}

// APIConfig holds configuration for the api service
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Server     ServerConfig   `mapstructure:"server"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Delivery   DeliveryConfig `mapstructure:"delivery"`
	Retry      RetryConfig    `mapstructure:"retry"`
}

// SchedulerServiceConfig holds configuration for the scheduler service
type SchedulerServiceConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Delivery   DeliveryConfig  `mapstructure:"delivery"`
	Retry      RetryConfig     `mapstructure:"retry"`
	Scheduler  SchedulerConfig `mapstructure:"scheduler"`
}

// EventBridgeConfig holds configuration for the event-bridge service
type EventBridgeConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Delivery   DeliveryConfig `mapstructure:"delivery"`
	Retry      RetryConfig    `mapstructure:"retry"`
}

// setCommonDefaults sets defaults shared by every service
func setCommonDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connect_timeout", "1m")
	v.SetDefault("delivery.http_timeout", domain.DEFAULT_DELIVERY_TIMEOUT.String())
	v.SetDefault("delivery.user_agent", domain.DEFAULT_DELIVERY_USERAGENT)
	v.SetDefault("retry.base_delay", domain.DEFAULT_RETRY_BASE_DELAY.String())
	v.SetDefault("retry.max_delay", domain.DEFAULT_RETRY_MAX_DELAY.String())
	v.SetDefault("retry.default_max_attempts", domain.DEFAULT_MAX_ATTEMPTS)
}

// LoadAPIConfig loads configuration for the api service
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	setCommonDefaults(v)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)

	var config APIConfig
	if err := readAndUnmarshal(v, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadSchedulerConfig loads configuration for the scheduler service
func LoadSchedulerConfig(configFile string, envPath string) (*SchedulerServiceConfig, error) {
	v := configureViper("scheduler", configFile, envPath)

	setCommonDefaults(v)
	v.SetDefault("scheduler.poll_interval", "5s")
	v.SetDefault("scheduler.batch_size", 100)
	v.SetDefault("scheduler.claim_timeout", "2m")
	v.SetDefault("scheduler.worker.pool_size", 10)
	v.SetDefault("delivery.rate_limit.requests_per_second", 0)
	v.SetDefault("delivery.rate_limit.burst", 0)
	v.SetDefault("delivery.rate_limit.max_wait", "30s")

	var config SchedulerServiceConfig
	if err := readAndUnmarshal(v, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadEventBridgeConfig loads configuration for the event-bridge service
func LoadEventBridgeConfig(configFile string, envPath string) (*EventBridgeConfig, error) {
	v := configureViper("event-bridge", configFile, envPath)

	setCommonDefaults(v)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.stream_name", "LMS_EVENTS")
	v.SetDefault("nats.subject_prefix", "lms.events")
	v.SetDefault("nats.consumer_name", "webhook-event-bridge")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "ff-webhook-event-bridge")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", 5)

	var config EventBridgeConfig
	if err := readAndUnmarshal(v, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// readAndUnmarshal reads the optional config file and decodes into out
func readAndUnmarshal(v *viper.Viper, out interface{}) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, environment only
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search order: current directory, cmd/<service>/, config/
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		"database.connect_timeout",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.subject_prefix",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.cors_allowed_origins",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Delivery
		"delivery.http_timeout",
		"delivery.user_agent",
		"delivery.rate_limit.requests_per_second",
		"delivery.rate_limit.burst",
		"delivery.rate_limit.max_wait",
		// Retry
		"retry.base_delay",
		"retry.max_delay",
		"retry.default_max_attempts",
		// Scheduler
		"scheduler.poll_interval",
		"scheduler.batch_size",
		"scheduler.claim_timeout",
		"scheduler.worker.pool_size",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Shared base first, then local, then optional per-service local
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

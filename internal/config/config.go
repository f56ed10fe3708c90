package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/frontdesk-api/internal/email"
	"github.com/jwalitptl/frontdesk-api/internal/service/booking"
	"github.com/jwalitptl/frontdesk-api/internal/service/calendar"
	"github.com/jwalitptl/frontdesk-api/pkg/messaging/redis"
	"github.com/jwalitptl/frontdesk-api/pkg/worker"
)

// EnvPrefix prefixes every environment override, e.g. FRONTDESK_SERVER_PORT.
const EnvPrefix = "FRONTDESK"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Calendar  calendar.Config `mapstructure:"calendar"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Email     email.Config    `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// PollInterval drives supabase subscriptions.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	Key    string `mapstructure:"key"`
	Bucket string `mapstructure:"bucket"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Expiry   time.Duration `mapstructure:"expiry"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type BookingConfig struct {
	booking.Config `mapstructure:",squash"`
	// Strict enables the redis slot lock.
	Strict bool `mapstructure:"strict"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	MaxRetries      int           `mapstructure:"max_retries"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	HealthPort      int           `mapstructure:"health_port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// secrets are read from the environment only, e.g. FRONTDESK_JWT_SECRET.
type secrets struct {
	DBPassword   string `envconfig:"DB_PASSWORD"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	SupabaseKey  string `envconfig:"SUPABASE_KEY"`
	RedisURL     string `envconfig:"REDIS_URL"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.max_upload_bytes", 25<<20)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.poll_interval", 2*time.Second)
	v.SetDefault("supabase.bucket", "medical-files")

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("jwt.issuer", "frontdesk")
	v.SetDefault("jwt.expiry", 24*time.Hour)
	v.SetDefault("jwt.cache_ttl", time.Minute)

	cal := calendar.DefaultConfig()
	v.SetDefault("calendar.morning_start", cal.MorningStart)
	v.SetDefault("calendar.morning_end", cal.MorningEnd)
	v.SetDefault("calendar.afternoon_start", cal.AfternoonStart)
	v.SetDefault("calendar.afternoon_end", cal.AfternoonEnd)
	v.SetDefault("calendar.slot_duration_minutes", cal.SlotDurationMinutes)

	v.SetDefault("booking.upload_timeout", booking.DefaultUploadTimeout)
	v.SetDefault("booking.write_timeout", booking.DefaultWriteTimeout)
	v.SetDefault("booking.lock_ttl", time.Duration(0))
	v.SetDefault("booking.strict", false)

	v.SetDefault("email.port", 587)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_interval", time.Hour)
	v.SetDefault("outbox.health_port", 8081)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from the usual locations, applies FRONTDESK_*
// environment overrides and overlays secrets. A missing file is not an error.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")
	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	cfg.applySecrets(s)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s secrets) {
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&c.Database.Password, s.DBPassword)
	overlay(&c.JWT.Secret, s.JWTSecret)
	overlay(&c.Supabase.Key, s.SupabaseKey)
	overlay(&c.Redis.URL, s.RedisURL)
	overlay(&c.Email.Username, s.SMTPUsername)
	overlay(&c.Email.Password, s.SMTPPassword)
}

// Validate checks the settings every process needs.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("postgres store needs database.host and database.name")
		}
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return errors.New("supabase store needs supabase.url and a key")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Booking.Strict && c.Redis.URL == "" {
		return errors.New("strict booking needs redis.url")
	}
	if _, err := calendar.NewPolicy(c.Calendar); err != nil {
		return fmt.Errorf("invalid calendar: %w", err)
	}
	return nil
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxRetries:    c.MaxRetries,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

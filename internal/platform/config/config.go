package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	JWT      JWTConfig
	Engine   EngineConfig
}

type AppConfig struct {
	Name        string
	Environment string
	LogLevel    string
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetries  int
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type EngineConfig struct {
	LedgerBackend         string
	StoreBackend          string
	TransitionMaxAttempts int
	ReserveTimeout        time.Duration
	MaxParticipants       int
	SweepInterval         time.Duration
	DefaultCapacity       int
	DefaultUnitPrice      int64
}

// Load reads .env (optional) and the process environment.
func Load() (*Config, error) {
	return load(".env", false)
}

// LoadWithPath reads configuration from a specific env file.
func LoadWithPath(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil && required {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := bind(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "tour-booking")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "5s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "tour_booking")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_CONNECT_RETRIES", 10)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "booking.lifecycle")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "tour-booking")

	v.SetDefault("ENGINE_LEDGER_BACKEND", BackendPostgres)
	v.SetDefault("ENGINE_STORE_BACKEND", BackendPostgres)
	v.SetDefault("ENGINE_TRANSITION_MAX_ATTEMPTS", 3)
	v.SetDefault("ENGINE_RESERVE_TIMEOUT", "2s")
	v.SetDefault("ENGINE_MAX_PARTICIPANTS", 50)
	v.SetDefault("ENGINE_SWEEP_INTERVAL", "1m")
	v.SetDefault("ENGINE_DEFAULT_CAPACITY", 20)
	v.SetDefault("ENGINE_DEFAULT_UNIT_PRICE", 0)
}

func bind(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.LogLevel = v.GetString("APP_LOG_LEVEL")

	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetInt("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.DBName = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Database.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	cfg.Database.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DB_CONN_MAX_LIFETIME")
	cfg.Database.ConnectRetries = v.GetInt("DB_CONNECT_RETRIES")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.RabbitMQ.URL = v.GetString("RABBITMQ_URL")
	cfg.RabbitMQ.Exchange = v.GetString("RABBITMQ_EXCHANGE")

	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	cfg.Engine.LedgerBackend = strings.ToLower(v.GetString("ENGINE_LEDGER_BACKEND"))
	cfg.Engine.StoreBackend = strings.ToLower(v.GetString("ENGINE_STORE_BACKEND"))
	cfg.Engine.TransitionMaxAttempts = v.GetInt("ENGINE_TRANSITION_MAX_ATTEMPTS")
	cfg.Engine.ReserveTimeout = v.GetDuration("ENGINE_RESERVE_TIMEOUT")
	cfg.Engine.MaxParticipants = v.GetInt("ENGINE_MAX_PARTICIPANTS")
	cfg.Engine.SweepInterval = v.GetDuration("ENGINE_SWEEP_INTERVAL")
	cfg.Engine.DefaultCapacity = v.GetInt("ENGINE_DEFAULT_CAPACITY")
	cfg.Engine.DefaultUnitPrice = v.GetInt64("ENGINE_DEFAULT_UNIT_PRICE")

	return cfg
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.Engine.LedgerBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Engine.LedgerBackend)
	}
	switch c.Engine.StoreBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Engine.StoreBackend)
	}
	if c.Engine.LedgerBackend == BackendPostgres && c.Engine.StoreBackend != BackendPostgres {
		return errors.New("postgres ledger requires the postgres store")
	}

	if c.Engine.TransitionMaxAttempts < 1 {
		return fmt.Errorf("ENGINE_TRANSITION_MAX_ATTEMPTS must be >= 1, got %d", c.Engine.TransitionMaxAttempts)
	}
	if c.Engine.MaxParticipants < 1 {
		return fmt.Errorf("ENGINE_MAX_PARTICIPANTS must be >= 1, got %d", c.Engine.MaxParticipants)
	}
	return nil
}

// NeedsDatabase reports whether any configured component talks to Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Engine.StoreBackend == BackendPostgres || c.Engine.LedgerBackend == BackendPostgres
}

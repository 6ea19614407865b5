package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Booking  BookingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings. Redis serves both the seat
// reservation hold store and the journey search cache.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// KafkaConfig holds event bus settings for the flights.created topic.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"KAFKA_BROKERS"`
	FlightsTopic  string   `mapstructure:"KAFKA_FLIGHTS_TOPIC"`
	ConsumerGroup string   `mapstructure:"KAFKA_CONSUMER_GROUP"`
	Workers       int      `mapstructure:"KAFKA_WORKERS"`
}

// BookingConfig holds the domain knobs: reservation TTL, cache TTL, layover
// window, journey span and leg limits.
type BookingConfig struct {
	ReservationTTL     time.Duration `mapstructure:"RESERVATION_TTL"`
	SearchCacheTTL     time.Duration `mapstructure:"SEARCH_CACHE_TTL"`
	MaxSeatsPerBooking int           `mapstructure:"MAX_SEATS_PER_BOOKING"`
	MaxSeatsPerFlight  int           `mapstructure:"MAX_SEATS_PER_FLIGHT"`
	MinLayover         time.Duration `mapstructure:"MIN_LAYOVER"`
	MaxLayover         time.Duration `mapstructure:"MAX_LAYOVER"`
	MaxJourneySpan     time.Duration `mapstructure:"MAX_JOURNEY_SPAN"`
	MaxLegs            int           `mapstructure:"MAX_LEGS"`
	OutboxSweepEvery   time.Duration `mapstructure:"OUTBOX_SWEEP_INTERVAL"`
	HoldSweepEvery     time.Duration `mapstructure:"HOLD_SWEEP_INTERVAL"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "aeris")
	viper.SetDefault("POSTGRES_PASSWORD", "aeris_secret")
	viper.SetDefault("POSTGRES_DB", "aeris_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
	viper.SetDefault("KAFKA_FLIGHTS_TOPIC", "flights.created")
	viper.SetDefault("KAFKA_CONSUMER_GROUP", "journey-precompute")
	viper.SetDefault("KAFKA_WORKERS", 4)

	viper.SetDefault("RESERVATION_TTL", "90s")
	viper.SetDefault("SEARCH_CACHE_TTL", "60s")
	viper.SetDefault("MAX_SEATS_PER_BOOKING", 10)
	viper.SetDefault("MAX_SEATS_PER_FLIGHT", 500)
	viper.SetDefault("MIN_LAYOVER", "30m")
	viper.SetDefault("MAX_LAYOVER", "4h")
	viper.SetDefault("MAX_JOURNEY_SPAN", "24h")
	viper.SetDefault("MAX_LEGS", 3)
	viper.SetDefault("OUTBOX_SWEEP_INTERVAL", "30s")
	viper.SetDefault("HOLD_SWEEP_INTERVAL", "1m")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Kafka ───────────────────────────────────────────
	cfg.Kafka = KafkaConfig{
		Brokers:       viper.GetStringSlice("KAFKA_BROKERS"),
		FlightsTopic:  viper.GetString("KAFKA_FLIGHTS_TOPIC"),
		ConsumerGroup: viper.GetString("KAFKA_CONSUMER_GROUP"),
		Workers:       viper.GetInt("KAFKA_WORKERS"),
	}

	// ── Booking domain ──────────────────────────────────
	cfg.Booking = BookingConfig{
		ReservationTTL:     viper.GetDuration("RESERVATION_TTL"),
		SearchCacheTTL:     viper.GetDuration("SEARCH_CACHE_TTL"),
		MaxSeatsPerBooking: viper.GetInt("MAX_SEATS_PER_BOOKING"),
		MaxSeatsPerFlight:  viper.GetInt("MAX_SEATS_PER_FLIGHT"),
		MinLayover:         viper.GetDuration("MIN_LAYOVER"),
		MaxLayover:         viper.GetDuration("MAX_LAYOVER"),
		MaxJourneySpan:     viper.GetDuration("MAX_JOURNEY_SPAN"),
		MaxLegs:            viper.GetInt("MAX_LEGS"),
		OutboxSweepEvery:   viper.GetDuration("OUTBOX_SWEEP_INTERVAL"),
		HoldSweepEvery:     viper.GetDuration("HOLD_SWEEP_INTERVAL"),
	}

	return cfg, nil
}

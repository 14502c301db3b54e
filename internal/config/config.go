package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Replication ReplicationConfig
	Worker      WorkerConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// ReplicationConfig identifies this deployment in the authorization graph.
type ReplicationConfig struct {
	// Environment names the deployment; it is both the platform identity
	// in tuples and the replication partition key.
	Environment string
	// UserDomain prefixes tenant and principal identifiers in tuples.
	UserDomain string
}

// WorkerConfig holds the user-feed consumer settings.
type WorkerConfig struct {
	Channel       string
	BatchSize     int
	FlushInterval time.Duration
}

// Load reads configuration from environment variables. Defaults are safe
// for local development only.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("TG_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("TG_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("TG_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	batchSize, err := getEnvInt("TG_WORKER_BATCH_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	flushInterval, err := getEnvDuration("TG_WORKER_FLUSH_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("TG_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("TG_DB_USER", "tenantgraph"),
			Password: getEnv("TG_DB_PASSWORD", ""),
			DBName:   getEnv("TG_DB_NAME", "tenantgraph_dev"),
			SSLMode:  getEnv("TG_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("TG_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("TG_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Replication: ReplicationConfig{
			Environment: getEnv("TG_ENVIRONMENT", "dev"),
			UserDomain:  getEnv("TG_USER_DOMAIN", "localhost"),
		},
		Worker: WorkerConfig{
			Channel:       getEnv("TG_WORKER_CHANNEL", "users:updates"),
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Replication.Environment == "" {
		return fmt.Errorf("TG_ENVIRONMENT must not be empty")
	}
	if c.Replication.UserDomain == "" {
		return fmt.Errorf("TG_USER_DOMAIN must not be empty")
	}

	if c.Database.SSLMode == "disable" {
		log.Warn().Msg("TG_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("TG_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("TG_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Worker.BatchSize < 1 {
		return fmt.Errorf("TG_WORKER_BATCH_SIZE must be >= 1, got %d", c.Worker.BatchSize)
	}
	if c.Worker.FlushInterval <= 0 {
		return fmt.Errorf("TG_WORKER_FLUSH_INTERVAL must be positive, got %s", c.Worker.FlushInterval)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

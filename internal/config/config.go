package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	DBSource string `yaml:"db_source"`
	Port     string `yaml:"port"`
	Env      string `yaml:"environment"`

	// Store is "postgres" or "memory".
	Store string `yaml:"store"`
	// SeedCount is how many demo assets and users a memory store starts with.
	SeedCount int `yaml:"seed_count"`

	MinRentalHours int `yaml:"min_rental_hours"`

	Redis          RedisConfig   `yaml:"redis"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`

	Log LogConfig `yaml:"log"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Port:           "8080",
		Env:            "development",
		Store:          StoreDriverPostgres,
		SeedCount:      100,
		MinRentalHours: 24,
		IdempotencyTTL: 24 * time.Hour,
		Log:            LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	setString(&cfg.DBSource, "DB_SOURCE")
	setString(&cfg.Port, "SERVER_PORT")
	setString(&cfg.Env, "ENVIRONMENT")
	setString(&cfg.Store, "STORE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	if err := setInt(&cfg.Redis.DB, "REDIS_DB"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.SeedCount, "SEED_COUNT"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.MinRentalHours, "MIN_RENTAL_HOURS"); err != nil {
		return nil, err
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreDriverPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.MinRentalHours <= 0 {
		return fmt.Errorf("min_rental_hours must be positive")
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", env, err)
	}
	*dst = n
	return nil
}

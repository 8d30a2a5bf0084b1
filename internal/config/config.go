package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values for DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the runtime settings of the store application.
type Config struct {
	AppPort string

	DBDriver    string
	DatabaseDSN string

	JWTSecret string
	JWTTTL    time.Duration

	RabbitMQURL string

	LogFormat string
	LogLevel  string

	Admin AdminSeed
}

// AdminSeed describes the administrator account created on boot.
// Seeding is skipped unless both Email and Password are set.
type AdminSeed struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Enabled reports whether an admin account should be seeded.
func (a AdminSeed) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

// Load reads configuration from the environment and an optional config.yaml
// in the working directory.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration using the given viper instance, so tests can
// inject values with v.Set.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "toko.db")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ADMIN_FIRST_NAME", "Admin")
	v.SetDefault("ADMIN_LAST_NAME", "User")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	ttl, err := time.ParseDuration(v.GetString("JWT_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL %q: %w", v.GetString("JWT_TTL"), err)
	}

	cfg := &Config{
		AppPort:     v.GetString("APP_PORT"),
		DBDriver:    strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN: v.GetString("DATABASE_DSN"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTTTL:      ttl,
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		LogFormat:   strings.ToLower(v.GetString("LOG_FORMAT")),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Admin: AdminSeed{
			FirstName: v.GetString("ADMIN_FIRST_NAME"),
			LastName:  v.GetString("ADMIN_LAST_NAME"),
			Email:     v.GetString("ADMIN_EMAIL"),
			Password:  v.GetString("ADMIN_PASSWORD"),
		},
	}

	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

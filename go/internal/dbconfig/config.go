package dbconfig

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Drivers understood by the repository layer.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

// Config holds database connection settings.
type Config struct {
	Driver     string `env:"DB_DRIVER" envDefault:"memory"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       int    `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"postgres"`
	Database   string `env:"DB_NAME" envDefault:"fieldofplay"`
	SSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"DB_SQLITE_PATH" envDefault:"fieldofplay.db"`
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse database env: %w", err)
	}
	return c, c.Validate()
}

// Validate checks the driver name.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory, DriverPostgres, DriverPgx, DriverSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
	}
}

// DSN returns the data source name for the configured driver.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.SQLitePath)
	case DriverMemory:
		return ""
	default:
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
		)
	}
}

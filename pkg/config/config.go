// Package config loads notispend settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/ArionMiles/notispend/pkg/logging"
	"github.com/ArionMiles/notispend/pkg/store/postgres"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// DotenvFiles are read in order before the environment. Earlier files win,
// and variables already set in the process environment win over all of them.
var DotenvFiles = []string{".env.local", ".env"}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Port is the HTTP listen port.
	// Environment variable: PORT
	Port int `koanf:"PORT"`

	// Store selects the persistence backend: postgres, sqlite or memory.
	// Environment variable: STORE
	Store string `koanf:"STORE"`

	// PostgreSQL connection settings.
	DBHost     string `koanf:"DB_HOST"`
	DBPort     int    `koanf:"DB_PORT"`
	DBName     string `koanf:"DB_NAME"`
	DBUser     string `koanf:"DB_USER"`
	DBPassword string `koanf:"DB_PASSWORD"`
	DBSSLMode  string `koanf:"DB_SSLMODE"`
	DBMaxConns int    `koanf:"DB_MAX_CONNS"`

	// SQLitePath is the database file used when Store is sqlite.
	// Environment variable: SQLITE_PATH
	SQLitePath string `koanf:"SQLITE_PATH"`

	// AMQPURL enables the queue consumer when set.
	// Environment variable: AMQP_URL
	AMQPURL   string `koanf:"AMQP_URL"`
	AMQPQueue string `koanf:"AMQP_QUEUE"`

	// ConnectAttempts bounds startup connection retries for the store and broker.
	// Environment variable: CONNECT_ATTEMPTS
	ConnectAttempts uint `koanf:"CONNECT_ATTEMPTS"`

	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Default returns the configuration used for unset variables.
func Default() Config {
	return Config{
		Port:            8000,
		Store:           StorePostgres,
		DBPort:          5432,
		DBName:          "mydb",
		DBSSLMode:       "disable",
		DBMaxConns:      10,
		SQLitePath:      "./data/notispend.db",
		AMQPQueue:       "notifications",
		ConnectAttempts: 5,
		LogLevel:        "INFO",
		LogFormat:       "text",
	}
}

// Load reads DotenvFiles and then the environment.
func Load() (Config, error) {
	return LoadFiles(DotenvFiles...)
}

// LoadFiles reads the given dotenv files, skipping missing ones, and then
// the environment, on top of Default.
func LoadFiles(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DBHost == "" {
			return errors.New("DB_HOST is required when STORE=postgres")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORE=sqlite")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q: want postgres, sqlite or memory", c.Store)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.ConnectAttempts == 0 {
		return errors.New("CONNECT_ATTEMPTS must be at least 1")
	}
	return nil
}

// Postgres returns the PostgreSQL store settings.
func (c Config) Postgres() postgres.Config {
	return postgres.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		Database: c.DBName,
		User:     c.DBUser,
		Password: c.DBPassword,
		SSLMode:  c.DBSSLMode,
		MaxConns: c.DBMaxConns,
	}
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.LogLevel)
	cfg.JSON = strings.EqualFold(c.LogFormat, "json")
	return cfg
}

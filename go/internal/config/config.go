// Package config loads application settings from an optional YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/dbconfig"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreNATS     = "nats"
	StorePostgres = "postgres"
)

// Preference backends.
const (
	PrefsTOML   = "toml"
	PrefsSQLite = "sqlite"
	PrefsMemory = "memory"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Prefs    PrefsConfig    `yaml:"prefs"`
	Relay    RelayConfig    `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type StoreConfig struct {
	Backend      string         `yaml:"backend"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	NATS         NATSConfig     `yaml:"nats"`
	Postgres     PostgresConfig `yaml:"postgres"`
}

type NATSConfig struct {
	URL    string        `yaml:"url"`
	Bucket string        `yaml:"bucket"`
	TTL    time.Duration `yaml:"ttl"`
}

type PostgresConfig struct {
	// DSN overrides the DB_* settings when set.
	DSN           string `yaml:"dsn"`
	NotifyChannel string `yaml:"notify_channel"`
}

type PrefsConfig struct {
	Backend string `yaml:"backend"`
	// Path is the TOML or SQLite file; empty uses the backend default.
	Path string `yaml:"path"`
}

type RelayConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File receives logs while the terminal UI owns the screen.
	File string `yaml:"file"`
}

type FeedbackConfig struct {
	Bell    bool `yaml:"bell"`
	Bounces bool `yaml:"bounces"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:      StoreNATS,
			WriteTimeout: 5 * time.Second,
			NATS: NATSConfig{
				URL:    "nats://127.0.0.1:4222",
				Bucket: "HostSession",
				TTL:    24 * time.Hour,
			},
			Postgres: PostgresConfig{
				NotifyChannel: "session_documents",
			},
		},
		Prefs: PrefsConfig{
			Backend: PrefsTOML,
		},
		Relay: RelayConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
			File:  "emdrtap.log",
		},
		Feedback: FeedbackConfig{
			Bell: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads path over the defaults (a missing path is not an error when it
// is empty) and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Store.Backend = getEnv("EMDRTAP_STORE", c.Store.Backend)
	c.Store.NATS.URL = getEnv("NATS_URL", c.Store.NATS.URL)
	c.Store.NATS.Bucket = getEnv("EMDRTAP_NATS_BUCKET", c.Store.NATS.Bucket)
	c.Store.Postgres.DSN = getEnv("EMDRTAP_PG_DSN", c.Store.Postgres.DSN)
	c.Store.WriteTimeout = time.Duration(getEnvAsInt("EMDRTAP_WRITE_TIMEOUT_SECONDS", int(c.Store.WriteTimeout.Seconds()))) * time.Second

	c.Prefs.Backend = getEnv("EMDRTAP_PREFS", c.Prefs.Backend)
	c.Prefs.Path = getEnv("EMDRTAP_PREFS_PATH", c.Prefs.Path)

	if port := os.Getenv("PORT"); port != "" {
		c.Relay.Addr = ":" + port
	}
	c.Relay.Addr = getEnv("EMDRTAP_RELAY_ADDR", c.Relay.Addr)

	c.Log.Level = getEnv("EMDRTAP_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("EMDRTAP_LOG_FILE", c.Log.File)
}

// PostgresDSN returns the configured DSN or one built from DB_* variables.
func (c *Config) PostgresDSN() string {
	if c.Store.Postgres.DSN != "" {
		return c.Store.Postgres.DSN
	}
	return dbconfig.NewConfigFromEnv().DSN()
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreNATS, StorePostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Prefs.Backend {
	case PrefsTOML, PrefsSQLite, PrefsMemory:
	default:
		return fmt.Errorf("unknown preferences backend %q", c.Prefs.Backend)
	}
	if c.Store.WriteTimeout <= 0 {
		return errors.New("store write timeout must be positive")
	}
	if c.Store.Backend == StoreNATS && c.Store.NATS.URL == "" {
		return errors.New("nats url is required for the nats store")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

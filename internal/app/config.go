package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"roomkeys/internal/store"
)

const (
	configFilename = "config.yaml"
	dbFilename     = "roomkeys.db"
)

// Config holds runtime wiring options for building the app. Values come from
// <home>/config.yaml, then from ROOMKEYS_* environment variables.
type Config struct {
	Home          string `yaml:"-" env:"ROOMKEYS_HOME"`
	DB            string `yaml:"db" env:"ROOMKEYS_DB"`
	LogLevel      string `yaml:"log_level" env:"ROOMKEYS_LOG_LEVEL"`
	LogPretty     bool   `yaml:"log_pretty" env:"ROOMKEYS_LOG_PRETTY,strict"`
	BackupVersion string `yaml:"backup_version" env:"ROOMKEYS_BACKUP_VERSION"`
	MetricsAddr   string `yaml:"metrics_addr" env:"ROOMKEYS_METRICS_ADDR"`
	Passphrase    string `yaml:"-" env:"ROOMKEYS_PASSPHRASE"`
	KDF           string `yaml:"kdf" env:"ROOMKEYS_KDF"`

	// Store tunes the database; tests lower the scrypt cost.
	Store *store.Options `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig(home string) Config {
	return Config{
		Home:        home,
		LogLevel:    "info",
		MetricsAddr: "127.0.0.1:9464",
	}
}

// DefaultHome is ~/.roomkeys.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".roomkeys"), nil
}

// LoadConfig reads <home>/config.yaml over the defaults and then applies the
// environment. A missing file is not an error.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig(home)
	if home != "" {
		path := filepath.Join(home, configFilename)
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

// DBPath is the database file, relative paths resolved against Home.
func (c Config) DBPath() string {
	switch {
	case c.DB == "":
		return filepath.Join(c.Home, dbFilename)
	case filepath.IsAbs(c.DB):
		return c.DB
	default:
		return filepath.Join(c.Home, c.DB)
	}
}

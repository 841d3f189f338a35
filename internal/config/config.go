package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	MaxParticipants int           `env:"MAX_PARTICIPANTS" envDefault:"5"`
	SettleDelay     time.Duration `env:"SETTLE_DELAY"     envDefault:"500ms"`
	RequireDetails  bool          `env:"REQUIRE_DETAILS"  envDefault:"false"`
	AutoStart       bool          `env:"AUTO_START"       envDefault:"false"`
	HostOnlyStart   bool          `env:"HOST_ONLY_START"  envDefault:"true"`
	CatalogPath     string        `env:"CATALOG_PATH"`

	DatabaseURL string `env:"DATABASE_URL"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	ClientRateLimit float64       `env:"CLIENT_RATE_LIMIT" envDefault:"10"`
	ClientRateBurst int           `env:"CLIENT_RATE_BURST" envDefault:"20"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"     envDefault:"3s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"      envDefault:"30s"`
}

// Load parses the process environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxParticipants <= 0 {
		return errors.New("MAX_PARTICIPANTS must be positive")
	}
	if c.SettleDelay < 0 {
		return errors.New("SETTLE_DELAY must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

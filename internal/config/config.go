package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr          string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath              string        `env:"DB_PATH" envDefault:"/data/drakdex.db"`
	BackendURL          string        `env:"BACKEND_URL" envDefault:"https://drakdex-api.onrender.com"`
	BackendTimeout      time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`
	CookieSecure        bool          `env:"COOKIE_SECURE" envDefault:"false"`
	DashboardCacheSize  int           `env:"DASHBOARD_CACHE_SIZE" envDefault:"1024"`
	CompendiumCacheSize int           `env:"COMPENDIUM_CACHE_SIZE" envDefault:"512"`
	SessionMaxAge       time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile             string        `env:"LOG_FILE"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file from the working directory and then
// parses the process environment. Variables already set in the environment
// win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL must not be empty")
	}
	return cfg, nil
}

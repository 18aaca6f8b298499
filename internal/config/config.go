package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBDriver          string        `env:"DB_DRIVER" envDefault:"postgres"`
	Port              string        `env:"PORT" envDefault:"8080"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"debug"`
	OracleBaseURL     string        `env:"ORACLE_BASE_URL" envDefault:"https://api.coingecko.com/api/v3"`
	OracleTimeout     time.Duration `env:"ORACLE_TIMEOUT" envDefault:"10s"`
	OracleConcurrency int           `env:"ORACLE_CONCURRENCY" envDefault:"8"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	MaxSessions       int64         `env:"MAX_SESSIONS" envDefault:"10000"`
	MinPasswordLen    int           `env:"MIN_PASSWORD_LEN" envDefault:"6"`
}

// Load reads .env when present (it is optional outside development) and
// then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return cfg, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	return cfg, nil
}

package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`
	APIAddr       string `env:"API_ADDR" envDefault:":8080"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"` // postgres | memory
	PostgresDSN   string `env:"POSTGRES_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY,notEmpty"`
	CacheTTLSec   int    `env:"CACHE_TTL_SEC" envDefault:"30"`
}

// Load reads configuration from the environment, preloading .env when
// present (ignored if missing).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "load .env")
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	if c.StorageDriver == "postgres" && c.PostgresDSN == "" {
		return Config{}, errors.New("POSTGRES_DSN is required with the postgres driver")
	}
	return c, nil
}

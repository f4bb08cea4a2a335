package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LedgerBackendMemory   = "memory"
	LedgerBackendPostgres = "postgres"
	LedgerBackendSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Precedence: environment, then .env, then the CONFIG_FILE yaml, then defaults.
type Config struct {
	ServiceName     string
	HTTPPort        string
	LedgerBackend   string
	PostgresDSN     string
	SQLitePath      string
	SignerJWTSecret string
	IdempotencyTTL  time.Duration
	EnableSwagger   bool
	AutoMigrate     bool
}

type fileConfig struct {
	ServiceName     string `yaml:"service_name"`
	HTTPPort        string `yaml:"http_port"`
	LedgerBackend   string `yaml:"ledger_backend"`
	PostgresDSN     string `yaml:"postgres_dsn"`
	SQLitePath      string `yaml:"sqlite_path"`
	SignerJWTSecret string `yaml:"signer_jwt_secret"`
	IdempotencyTTL  string `yaml:"idempotency_ttl"`
	EnableSwagger   *bool  `yaml:"enable_swagger"`
	AutoMigrate     *bool  `yaml:"auto_migrate"`
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		ServiceName:    "pollchain",
		HTTPPort:       "8080",
		LedgerBackend:  LedgerBackendMemory,
		SQLitePath:     "pollchain.db",
		IdempotencyTTL: 24 * time.Hour,
		EnableSwagger:  true,
		AutoMigrate:    true,
	}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.ServiceName = envString("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPPort = envString("HTTP_PORT", cfg.HTTPPort)
	cfg.LedgerBackend = strings.ToLower(envString("LEDGER_BACKEND", cfg.LedgerBackend))
	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.SQLitePath = envString("SQLITE_PATH", cfg.SQLitePath)
	cfg.SignerJWTSecret = envString("SIGNER_JWT_SECRET", cfg.SignerJWTSecret)
	cfg.EnableSwagger = envBool("ENABLE_SWAGGER", cfg.EnableSwagger)
	cfg.AutoMigrate = envBool("AUTO_MIGRATE", cfg.AutoMigrate)
	if raw := strings.TrimSpace(os.Getenv("IDEMPOTENCY_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = ttl
	}

	switch cfg.LedgerBackend {
	case LedgerBackendMemory, LedgerBackendSQLite:
	case LedgerBackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return Config{}, errors.New("POSTGRES_DSN is required for the postgres ledger backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if file.ServiceName != "" {
		cfg.ServiceName = file.ServiceName
	}
	if file.HTTPPort != "" {
		cfg.HTTPPort = file.HTTPPort
	}
	if file.LedgerBackend != "" {
		cfg.LedgerBackend = file.LedgerBackend
	}
	if file.PostgresDSN != "" {
		cfg.PostgresDSN = file.PostgresDSN
	}
	if file.SQLitePath != "" {
		cfg.SQLitePath = file.SQLitePath
	}
	if file.SignerJWTSecret != "" {
		cfg.SignerJWTSecret = file.SignerJWTSecret
	}
	if file.IdempotencyTTL != "" {
		ttl, err := time.ParseDuration(file.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("parse idempotency_ttl: %w", err)
		}
		cfg.IdempotencyTTL = ttl
	}
	if file.EnableSwagger != nil {
		cfg.EnableSwagger = *file.EnableSwagger
	}
	if file.AutoMigrate != nil {
		cfg.AutoMigrate = *file.AutoMigrate
	}
	return nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

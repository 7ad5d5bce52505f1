package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Store    StoreConfig
	Analysis AnalysisConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"localhost"`
	Port            int           `env:"SERVER_PORT" envDefault:"8084"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DataConfig names the seed files loaded at startup. Any of them may be
// empty; the dashboard then waits for an upload.
type DataConfig struct {
	TransactionsFile string `env:"DATA_TRANSACTIONS_FILE"`
	CustomersFile    string `env:"DATA_CUSTOMERS_FILE"`
	StrategiesFile   string `env:"DATA_STRATEGIES_FILE"`
	UploadMaxBytes   int64  `env:"UPLOAD_MAX_BYTES" envDefault:"33554432"`
}

type StoreConfig struct {
	Backend       string `env:"STORE_BACKEND" envDefault:"file"`
	File          string `env:"STORE_FILE" envDefault:".cache/datasets.gob"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"advisor_dashboard"`
}

type AnalysisConfig struct {
	TierRank         []string `env:"ANALYSIS_TIER_RANK" envSeparator:"," envDefault:"私行,黑钻,钻石,白金,黄金,普通"`
	ExcludedAdvisors []string `env:"ANALYSIS_EXCLUDED_ADVISORS" envSeparator:"," envDefault:"正行深圳虚拟理财师"`
}

type LoggerConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	// File, when set, receives a rotated copy of every log line.
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
}

type SecurityConfig struct {
	EnableCSRF      bool     `env:"SECURITY_CSRF_ENABLED" envDefault:"true"`
	EnableRateLimit bool     `env:"SECURITY_RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS    int      `env:"SECURITY_RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst  int      `env:"SECURITY_RATE_LIMIT_BURST" envDefault:"10"`
	AllowedOrigins  []string `env:"SECURITY_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:8084"`
	TrustedProxies  []string `env:"SECURITY_TRUSTED_PROXIES" envSeparator:"," envDefault:"127.0.0.1"`
}

const (
	StoreBackendFile  = "file"
	StoreBackendMongo = "mongo"
	StoreBackendNone  = "none"
)

// Load reads .env files when present, then the process environment.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload size limit must be positive")
	}

	validBackends := []string{StoreBackendFile, StoreBackendMongo, StoreBackendNone}
	if !slices.Contains(validBackends, c.Store.Backend) {
		return fmt.Errorf("invalid store backend %q, must be one of: %s", c.Store.Backend, strings.Join(validBackends, ", "))
	}

	if c.Store.Backend == StoreBackendFile && c.Store.File == "" {
		return fmt.Errorf("store file path cannot be empty")
	}

	if c.Store.Backend == StoreBackendMongo && c.Store.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required for the mongo store backend")
	}

	if len(c.Analysis.TierRank) == 0 {
		return fmt.Errorf("tier rank cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Package config loads service configuration. Values are layered: built-in
// defaults, then an optional YAML file, then a .env file, then the process
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable that points at a YAML file.
const ConfigPathEnv = "NOVASTACK_CONFIG"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Monero   MoneroConfig   `yaml:"monero"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	Environment     string        `yaml:"environment" env:"ENVIRONMENT"`
	FrontendURL     string        `yaml:"frontend_url" env:"FRONTEND_URL"`
	RateLimitRPS    int           `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AuditLogPath    string        `yaml:"audit_log_path" env:"AUDIT_LOG_PATH"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret" env:"JWT_SECRET"`
	AdminUserIDs string `yaml:"admin_user_ids" env:"ADMIN_USER_IDS"`
}

type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL            string        `yaml:"url" env:"REDIS_URL"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env:"IDEMPOTENCY_TTL"`
}

type MoneroConfig struct {
	RPCURL        string        `yaml:"rpc_url" env:"MONERO_WALLET_RPC_URL"`
	Username      string        `yaml:"username" env:"MONERO_WALLET_USER"`
	Password      string        `yaml:"password" env:"MONERO_WALLET_PASSWORD"`
	Timeout       time.Duration `yaml:"timeout" env:"MONERO_WALLET_TIMEOUT"`
	MinInvestment string        `yaml:"min_investment" env:"MONERO_MIN_INVESTMENT"`
	Confirmations uint64        `yaml:"confirmations" env:"MONERO_CONFIRMATIONS"`
}

type JobsConfig struct {
	Enabled       bool   `yaml:"enabled" env:"JOBS_ENABLED"`
	WalletRefresh string `yaml:"wallet_refresh" env:"WALLET_REFRESH_SCHEDULE"`
	ReconcileTxs  string `yaml:"reconcile" env:"RECONCILE_SCHEDULE"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	Output string `yaml:"output" env:"LOG_OUTPUT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			Environment:     "development",
			FrontendURL:     "http://localhost:3000",
			RateLimitRPS:    10,
			RateLimitBurst:  100,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{IdempotencyTTL: 24 * time.Hour},
		Monero: MoneroConfig{
			RPCURL:        "http://localhost:18083",
			Username:      "novastack",
			Password:      "wallet_password",
			Timeout:       30 * time.Second,
			MinInvestment: "0.001",
			Confirmations: 10,
		},
		Jobs: JobsConfig{
			Enabled:       true,
			WalletRefresh: "@every 2m",
			ReconcileTxs:  "@every 1m",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// NOVASTACK_CONFIG (if any), .env and the environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(ConfigPathEnv)); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file over the defaults without consulting the
// environment.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	targets := []interface{}{&c.Server, &c.Auth, &c.Database, &c.Redis, &c.Monero, &c.Jobs, &c.Logging}
	for _, target := range targets {
		if err := envdecode.Decode(target); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return fmt.Errorf("decode environment: %w", err)
		}
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("JWT secret not configured")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Monero.RPCURL) == "" {
		return fmt.Errorf("monero wallet rpc url is required")
	}
	if _, err := c.MinInvestment(); err != nil {
		return err
	}
	return nil
}

// MinInvestment parses the configured minimum investment in XMR.
func (c *Config) MinInvestment() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Monero.MinInvestment))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid minimum investment %q: %w", c.Monero.MinInvestment, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("minimum investment must not be negative")
	}
	return d, nil
}

// IsProduction reports whether internal error details should be hidden.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AllowedOrigins lists the CORS origins derived from FRONTEND_URL, which may
// hold several comma separated origins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, part := range strings.Split(c.Server.FrontendURL, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// AdminIDs returns the admin allowlist as a set.
func (c *Config) AdminIDs() map[string]struct{} {
	return ParseCSVSet(c.Auth.AdminUserIDs)
}

// ParseCSVSet splits a comma separated list into a set, dropping blanks.
func ParseCSVSet(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out[trimmed] = struct{}{}
	}
	return out
}

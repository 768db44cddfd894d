package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the config loaders.
const (
	EnvConfigPath       = "CONFIG_PATH"
	EnvDBConnection     = "DB_CONNECTION"
	EnvJWTSecret        = "JWT_SECRET"
	EnvJWTExpiry        = "JWT_EXPIRY"
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
	EnvStripeSecretKey  = "STRIPE_SECRET_KEY"
	EnvPineconeAPIKey   = "PINECONE_API_KEY"
	EnvPineconeHost     = "PINECONE_INDEX_HOST"
	EnvFrontendURL      = "FRONTEND_URL"
	EnvSMTPHost         = "SMTP_HOST"
	EnvSMTPPort         = "SMTP_PORT"
	EnvSMTPUser         = "SMTP_USER"
	EnvSMTPPassword     = "SMTP_PASSWORD"
	EnvSMTPFrom         = "SMTP_FROM"
	EnvPort             = "PORT"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// LoadServerPort resolves the listen port: PORT env first, then the given
// default.
func LoadServerPort(defaultPort int) int {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		if port, errParse := strconv.Atoi(raw); errParse == nil && port > 0 && port <= 65535 {
			return port
		}
	}
	return defaultPort
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// OpenRouterConfig holds upstream model gateway settings.
type OpenRouterConfig struct {
	APIKey       string `yaml:"api-key"`
	BaseURL      string `yaml:"base-url"`
	DefaultModel string `yaml:"default-model"`
	Referer      string `yaml:"referer"`
	Title        string `yaml:"title"`
}

// LoadOpenRouterConfig loads model gateway settings from the YAML config file.
func LoadOpenRouterConfig(configPath string) OpenRouterConfig {
	// fileConfig maps the YAML fields needed for gateway settings.
	type fileConfig struct {
		OpenRouter OpenRouterConfig `yaml:"openrouter"`
	}

	var result OpenRouterConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.OpenRouter
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvOpenRouterAPIKey)); key != "" {
		result.APIKey = key
	}
	if result.BaseURL == "" {
		result.BaseURL = "https://openrouter.ai/api/v1"
	}
	if result.DefaultModel == "" {
		result.DefaultModel = "openai/gpt-3.5-turbo"
	}
	return result
}

// StripeConfig holds payment provider settings.
type StripeConfig struct {
	SecretKey   string `yaml:"secret-key"`
	FrontendURL string `yaml:"frontend-url"`
}

// LoadStripeConfig loads payment settings from the YAML config file.
func LoadStripeConfig(configPath string) StripeConfig {
	// fileConfig maps the YAML fields needed for payment settings.
	type fileConfig struct {
		Stripe StripeConfig `yaml:"stripe"`
	}

	var result StripeConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Stripe
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvStripeSecretKey)); key != "" {
		result.SecretKey = key
	}
	if frontend := strings.TrimSpace(os.Getenv(EnvFrontendURL)); frontend != "" {
		result.FrontendURL = frontend
	}
	if result.FrontendURL == "" {
		result.FrontendURL = "http://localhost:3000"
	}
	return result
}

// PineconeConfig holds vector memory settings.
type PineconeConfig struct {
	APIKey    string `yaml:"api-key"`
	IndexHost string `yaml:"index-host"`
	Namespace string `yaml:"namespace"`
	Model     string `yaml:"model"`
}

// LoadPineconeConfig loads vector memory settings from the YAML config file.
func LoadPineconeConfig(configPath string) PineconeConfig {
	// fileConfig maps the YAML fields needed for memory settings.
	type fileConfig struct {
		Pinecone PineconeConfig `yaml:"pinecone"`
	}

	var result PineconeConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Pinecone
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvPineconeAPIKey)); key != "" {
		result.APIKey = key
	}
	if host := strings.TrimSpace(os.Getenv(EnvPineconeHost)); host != "" {
		result.IndexHost = host
	}
	if result.Namespace == "" {
		result.Namespace = "chatbot"
	}
	if result.Model == "" {
		result.Model = "multilingual-e5-large"
	}
	return result
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LoadSMTPConfig loads mail settings from the YAML config file.
func LoadSMTPConfig(configPath string) SMTPConfig {
	// fileConfig maps the YAML fields needed for mail settings.
	type fileConfig struct {
		SMTP SMTPConfig `yaml:"smtp"`
	}

	var result SMTPConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.SMTP
		}
	}

	if host := strings.TrimSpace(os.Getenv(EnvSMTPHost)); host != "" {
		result.Host = host
	}
	if portRaw := strings.TrimSpace(os.Getenv(EnvSMTPPort)); portRaw != "" {
		if port, errParse := strconv.Atoi(portRaw); errParse == nil && port > 0 {
			result.Port = port
		}
	}
	if user := strings.TrimSpace(os.Getenv(EnvSMTPUser)); user != "" {
		result.User = user
	}
	if password := strings.TrimSpace(os.Getenv(EnvSMTPPassword)); password != "" {
		result.Password = password
	}
	if from := strings.TrimSpace(os.Getenv(EnvSMTPFrom)); from != "" {
		result.From = from
	}
	if result.Port <= 0 {
		result.Port = 587
	}
	return result
}

// RateLimitConfig holds throttle settings for auth endpoints.
type RateLimitConfig struct {
	Limit         int    `yaml:"limit"`
	RedisEnabled  bool   `yaml:"redis-enabled"`
	RedisAddr     string `yaml:"redis-addr"`
	RedisPassword string `yaml:"redis-password"`
	RedisDB       int    `yaml:"redis-db"`
	RedisPrefix   string `yaml:"redis-prefix"`
}

// defaultAuthRateLimit caps OTP and login attempts per key per second.
const defaultAuthRateLimit = 5

// LoadRateLimitConfig loads throttle settings from the YAML config file.
func LoadRateLimitConfig(configPath string) RateLimitConfig {
	// fileConfig maps the YAML fields needed for throttle settings.
	type fileConfig struct {
		RateLimit RateLimitConfig `yaml:"rate-limit"`
	}

	result := RateLimitConfig{Limit: defaultAuthRateLimit}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil && cfg.RateLimit != (RateLimitConfig{}) {
			result = cfg.RateLimit
		}
	}

	result.RedisAddr = strings.TrimSpace(result.RedisAddr)
	result.RedisPrefix = strings.TrimSpace(result.RedisPrefix)
	if result.RedisPrefix == "" {
		result.RedisPrefix = "chatbot:rl"
	}
	if result.RedisDB < 0 {
		result.RedisDB = 0
	}
	if result.Limit < 0 {
		result.Limit = 0
	}
	return result
}

package ratelimit

import (
	"strings"

	"chatbot-api/internal/config"
)

// SettingsConfig captures limiter backend settings.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsFromConfig adapts application rate limit config into a settings
// snapshot for the Manager.
func SettingsFromConfig(cfg config.RateLimitConfig) SettingsConfig {
	result := SettingsConfig{
		Limit:         cfg.Limit,
		RedisEnabled:  cfg.RedisEnabled,
		RedisAddr:     strings.TrimSpace(cfg.RedisAddr),
		RedisPassword: strings.TrimSpace(cfg.RedisPassword),
		RedisDB:       cfg.RedisDB,
		RedisPrefix:   strings.TrimSpace(cfg.RedisPrefix),
	}
	if result.RedisDB < 0 {
		result.RedisDB = 0
	}
	if result.Limit < 0 {
		result.Limit = 0
	}
	return result
}

// StaticProvider returns a provider that always yields the given snapshot.
func StaticProvider(cfg SettingsConfig) SettingsProvider {
	return func() SettingsConfig { return cfg }
}

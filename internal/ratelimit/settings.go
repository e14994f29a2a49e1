package ratelimit

import (
	"strings"

	internalsettings "github.com/tiker-app/tiker/internal/settings"
)

// SettingsConfig captures rate limit settings stored in DB config.
type SettingsConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig loads the current rate limit settings snapshot.
func LoadSettingsConfig() SettingsConfig {
	cfg := SettingsConfig{
		RedisEnabled:  internalsettings.BoolValue(internalsettings.RateLimitRedisEnabledKey, false),
		RedisAddr:     internalsettings.StringValue(internalsettings.RateLimitRedisAddrKey, ""),
		RedisPassword: internalsettings.StringValue(internalsettings.RateLimitRedisPasswordKey, ""),
		RedisDB:       internalsettings.IntValue(internalsettings.RateLimitRedisDBKey, 0),
		RedisPrefix:   internalsettings.StringValue(internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix),
	}
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPrefix = strings.TrimSpace(cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	return cfg
}

// Package config loads the federator's settings.
//
// Process settings come from environment variables (a .env file is read by
// the entry point). The shard topology, meaning shards, routing rules and
// named statements, lives in a YAML file named by SHARDS_FILE; see
// LoadTopology.
//
// Environment Variables:
//
//   - LOG_LEVEL: Logging level (default: info)
//   - SHARDS_FILE: Topology file path (default: ./shards.yaml)
//   - DEFAULT_SHARD: Identity of the default target; overrides the file's default
//   - ADMIN_PORT: Admin HTTP port (default: 8081)
//   - SHUTDOWN_GRACE: Pool disposal grace period (default: 5m)
//   - ROUTE_CACHE_TTL: Cache routing results for this long; 0 disables (default: 0s)
//   - AUDIT_ENABLED: Log every executed statement (default: false)
//   - AUDIT_REDIS_ADDRESS: Also push audit entries to this Redis
//   - AUDIT_REDIS_PASSWORD, AUDIT_REDIS_DB (default: 0), AUDIT_REDIS_KEY
//   - BREAKER_ENABLED: Guard shard acquisition with circuit breakers (default: true)
//   - BREAKER_MAX_FAILURES: Consecutive failures before opening (default: 5)
//   - BREAKER_TIMEOUT: Open-state duration (default: 30s)
//   - RATE_LIMIT_ENABLED: Limit handle acquisitions per shard (default: false)
//   - RATE_LIMIT_RPS: Acquisitions per second per shard (default: 100)
//   - RATE_LIMIT_BURST: Burst size (default: 20)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shard-federator/internal/common/errors"
)

// Config holds process settings loaded from the environment.
type Config struct {
	LogLevel      string
	ShardsFile    string
	DefaultShard  string
	AdminPort     string
	ShutdownGrace string
	RouteCacheTTL string

	AuditEnabled       bool
	AuditRedisAddress  string
	AuditRedisPassword string
	AuditRedisDB       string
	AuditRedisKey      string

	BreakerEnabled     bool
	BreakerMaxFailures string
	BreakerTimeout     string

	RateLimitEnabled bool
	RateLimitRPS     string
	RateLimitBurst   string
}

// Load reads the environment. It does not validate; call Validate.
func Load() *Config {
	return &Config{
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ShardsFile:    getEnv("SHARDS_FILE", "./shards.yaml"),
		DefaultShard:  getEnv("DEFAULT_SHARD", ""),
		AdminPort:     getEnv("ADMIN_PORT", "8081"),
		ShutdownGrace: getEnv("SHUTDOWN_GRACE", "5m"),
		RouteCacheTTL: getEnv("ROUTE_CACHE_TTL", "0s"),

		AuditEnabled:       getBoolEnv("AUDIT_ENABLED", false),
		AuditRedisAddress:  getEnv("AUDIT_REDIS_ADDRESS", ""),
		AuditRedisPassword: getEnv("AUDIT_REDIS_PASSWORD", ""),
		AuditRedisDB:       getEnv("AUDIT_REDIS_DB", "0"),
		AuditRedisKey:      getEnv("AUDIT_REDIS_KEY", ""),

		BreakerEnabled:     getBoolEnv("BREAKER_ENABLED", true),
		BreakerMaxFailures: getEnv("BREAKER_MAX_FAILURES", "5"),
		BreakerTimeout:     getEnv("BREAKER_TIMEOUT", "30s"),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", false),
		RateLimitRPS:     getEnv("RATE_LIMIT_RPS", "100"),
		RateLimitBurst:   getEnv("RATE_LIMIT_BURST", "20"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv falls back to defaultValue when the variable is unset or unparsable.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks every field that is parsed later.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.ConfigError(fmt.Sprintf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if c.ShardsFile == "" {
		return errors.ConfigError("SHARDS_FILE is required")
	}

	if port, err := strconv.Atoi(c.AdminPort); err != nil || port < 1 || port > 65535 {
		return errors.ConfigError("ADMIN_PORT must be a valid port number between 1 and 65535")
	}

	if d, err := time.ParseDuration(c.ShutdownGrace); err != nil || d < 0 {
		return errors.ConfigError("SHUTDOWN_GRACE must be a non-negative duration (e.g. '5m')")
	}

	if d, err := time.ParseDuration(c.RouteCacheTTL); err != nil || d < 0 {
		return errors.ConfigError("ROUTE_CACHE_TTL must be a non-negative duration (e.g. '30s')")
	}

	if c.AuditRedisAddress != "" {
		if db, err := strconv.Atoi(c.AuditRedisDB); err != nil || db < 0 || db > 15 {
			return errors.ConfigError("AUDIT_REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.BreakerEnabled {
		if n, err := strconv.Atoi(c.BreakerMaxFailures); err != nil || n < 1 {
			return errors.ConfigError("BREAKER_MAX_FAILURES must be a positive number")
		}
		if d, err := time.ParseDuration(c.BreakerTimeout); err != nil || d <= 0 {
			return errors.ConfigError("BREAKER_TIMEOUT must be a positive duration (e.g. '30s')")
		}
	}

	if c.RateLimitEnabled {
		if rps, err := strconv.ParseFloat(c.RateLimitRPS, 64); err != nil || rps <= 0 {
			return errors.ConfigError("RATE_LIMIT_RPS must be a positive number")
		}
		if burst, err := strconv.Atoi(c.RateLimitBurst); err != nil || burst < 1 {
			return errors.ConfigError("RATE_LIMIT_BURST must be a positive number")
		}
	}

	return nil
}

// Grace returns SHUTDOWN_GRACE parsed. Call after Validate.
func (c *Config) Grace() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownGrace)
	return d
}

// CacheTTL returns ROUTE_CACHE_TTL parsed. Call after Validate.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.RouteCacheTTL)
	return d
}

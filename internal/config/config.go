package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fincache/internal/cache"
	"fincache/internal/log"
	"fincache/internal/repository"
	"fincache/internal/services"
)

type Config struct {
	// Remote API
	Gateway    string
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration
	UserID     int64

	// Cache
	CacheBackend    string
	CacheDBPath     string
	CacheMaxEntries int
	CachePolicyFile string
	DefaultTTL      time.Duration
	TTLs            map[string]time.Duration
	Fallbacks       map[string]string

	// Connectivity probe; empty address means always online
	ProbeAddr    string
	ProbeTimeout time.Duration

	// Worker
	WorkerConcurrency int
	WarmInterval      time.Duration

	// AMQP change feed; empty URL disables it
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string

	// problems found while loading, reported by Validate
	loadErrs []string
}

// Load reads the configuration from the environment. Values from the policy
// file named by CACHE_POLICY_FILE apply first; CACHE_TTL_* variables win.
func Load() *Config {
	cfg := &Config{
		Gateway:    getEnv("GATEWAY", "http"),
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080/api"),
		APIToken:   getEnv("API_TOKEN", ""),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),
		UserID:     getEnvInt64("USER_ID", 0),

		CacheBackend:    getEnv("CACHE_BACKEND", "sqlite"),
		CacheDBPath:     getEnv("CACHE_DB_PATH", "./data/fincache.db"),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 0),
		CachePolicyFile: getEnv("CACHE_POLICY_FILE", ""),
		DefaultTTL:      cache.DefaultTTL,
		TTLs:            make(map[string]time.Duration, len(services.Domains)),
		Fallbacks:       make(map[string]string, len(services.Domains)),

		ProbeAddr:    getEnv("PROBE_ADDR", ""),
		ProbeTimeout: getEnvDuration("PROBE_TIMEOUT", 2*time.Second),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		WarmInterval:      getEnvDuration("WARM_INTERVAL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fincache.changes"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "fincache_changes"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	for d, ttl := range services.DefaultTTLs {
		cfg.TTLs[d] = ttl
	}
	for d, f := range services.DefaultFallbacks() {
		cfg.Fallbacks[d] = f.String()
	}

	if cfg.CachePolicyFile != "" {
		pf, err := LoadPolicyFile(cfg.CachePolicyFile)
		if err != nil {
			cfg.loadErrs = append(cfg.loadErrs, err.Error())
		} else {
			pf.apply(cfg)
		}
	}

	for _, d := range services.Domains {
		cfg.TTLs[d] = getEnvDuration("CACHE_TTL_"+strings.ToUpper(d), cfg.TTLs[d])
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := append([]string(nil), c.loadErrs...)

	// Validate gateway
	switch c.Gateway {
	case "http":
		if parsedURL, err := url.Parse(c.APIBaseURL); err != nil || c.APIBaseURL == "" {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid gateway '%s': must be one of [http memory]", c.Gateway))
	}

	if c.APITimeout < 100*time.Millisecond || c.APITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 100ms and 5 minutes", c.APITimeout))
	}
	if c.UserID < 0 {
		errors = append(errors, fmt.Sprintf("invalid user id %d: must not be negative", c.UserID))
	}

	// Validate cache backend
	switch c.CacheBackend {
	case "memory":
	case "sqlite":
		if c.CacheDBPath == "" {
			errors = append(errors, "cache database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.CacheDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create cache database directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of [memory sqlite]", c.CacheBackend))
	}

	if c.CacheMaxEntries < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache max entries %d: must not be negative", c.CacheMaxEntries))
	}
	if c.DefaultTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid default TTL %v: must be positive", c.DefaultTTL))
	}
	for d, ttl := range c.TTLs {
		if ttl <= 0 {
			errors = append(errors, fmt.Sprintf("invalid TTL for %s %v: must be positive", d, ttl))
		}
	}
	for d, f := range c.Fallbacks {
		if _, err := repository.ParseFallback(f); err != nil {
			errors = append(errors, fmt.Sprintf("invalid fallback for %s: %v", d, err))
		}
	}

	if c.ProbeAddr != "" && c.ProbeTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid probe timeout %v: must be positive", c.ProbeTimeout))
	}

	// Validate worker configuration
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be between 1 and 64", c.WorkerConcurrency))
	}
	if c.WarmInterval < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid warm interval %v: must be at least 10 seconds", c.WarmInterval))
	} else if c.WarmInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid warm interval %v: must be at most 24 hours", c.WarmInterval))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Policy builds the cache TTL policy.
func (c *Config) Policy() cache.Policy {
	prefixes := make([]string, 0, len(c.TTLs))
	for p := range c.TTLs {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	rules := make([]cache.Rule, 0, len(prefixes))
	for _, p := range prefixes {
		rules = append(rules, cache.Rule{Prefix: p, TTL: c.TTLs[p]})
	}
	return cache.NewPolicy(c.DefaultTTL, rules...)
}

// FallbackModes parses the per-domain fallback settings. Validate reports
// the same errors; unparsable entries are left out here.
func (c *Config) FallbackModes() map[string]repository.Fallback {
	out := make(map[string]repository.Fallback, len(c.Fallbacks))
	for d, s := range c.Fallbacks {
		if f, err := repository.ParseFallback(s); err == nil {
			out[d] = f
		}
	}
	return out
}

// LoggerConfig returns the logging setup for component at LOG_LEVEL.
func (c *Config) LoggerConfig(component string) log.Config {
	return log.Config{Level: log.ParseLevel(c.LogLevel), Component: component}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package backend

import (
	"fmt"
	"time"

	"fincache/internal/cache"
	"fincache/internal/config"
	"fincache/internal/repository"
)

// Config holds configuration for stack creation
type Config struct {
	// Cache
	Store      StoreType
	DBPath     string
	MaxEntries int
	Policy     cache.Policy

	// Remote
	Gateway GatewayType
	BaseURL string
	Token   string
	Timeout time.Duration
	UserID  int64

	// Connectivity. Offline forces every call down the cache path.
	Offline      bool
	ProbeAddr    string
	ProbeTimeout time.Duration

	Fallbacks   map[string]repository.Fallback
	Concurrency int

	// Change feed; Queue is only needed by consumers
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Store:      StoreType(appConfig.CacheBackend),
		DBPath:     appConfig.CacheDBPath,
		MaxEntries: appConfig.CacheMaxEntries,
		Policy:     appConfig.Policy(),

		Gateway: GatewayType(appConfig.Gateway),
		BaseURL: appConfig.APIBaseURL,
		Token:   appConfig.APIToken,
		Timeout: appConfig.APITimeout,
		UserID:  appConfig.UserID,

		ProbeAddr:    appConfig.ProbeAddr,
		ProbeTimeout: appConfig.ProbeTimeout,

		Fallbacks:   appConfig.FallbackModes(),
		Concurrency: appConfig.WorkerConcurrency,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}
	if !c.Gateway.IsValid() {
		return fmt.Errorf("invalid gateway type: %s", c.Gateway)
	}
	if c.Store == SQLiteStore && c.DBPath == "" {
		return fmt.Errorf("cache database path is required for sqlite store")
	}
	if c.Gateway == HTTPGateway && c.BaseURL == "" {
		return fmt.Errorf("API base URL is required for http gateway")
	}
	return nil
}

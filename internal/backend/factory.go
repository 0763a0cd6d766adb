package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"fincache/internal/amqp"
	"fincache/internal/cache"
	"fincache/internal/identity"
	"fincache/internal/log"
	"fincache/internal/probe"
	"fincache/internal/remote"
	"fincache/internal/remote/httpapi"
	"fincache/internal/remote/memory"
	"fincache/internal/repository"
	"fincache/internal/services"
	"fincache/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// Build opens the cache, connects the gateway and wires the domain services.
// The change feed is optional: when it cannot be reached the stack is built
// without it.
func (f *DefaultFactory) Build(ctx context.Context, config Config) (*Stack, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	shared, err := f.openStore(config)
	if err != nil {
		return nil, err
	}
	store, err := shared.Acquire()
	if err != nil {
		return nil, err
	}

	gw, err := f.createGateway(config)
	if err != nil {
		shared.Release()
		return nil, err
	}

	var feed *amqp.Client
	if config.AMQPURL != "" {
		feed, err = amqp.NewClient(amqp.Config{
			URL:      config.AMQPURL,
			Exchange: config.AMQPExchange,
			Queue:    config.AMQPQueue,
			Logger:   f.logger.WithComponent(log.ComponentAMQP),
		})
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change feed", log.FieldError, err)
			feed = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue,
				"origin", feed.Origin())
		}
	}

	p := f.createProbe(config)
	repoLogger := f.logger.WithComponent(log.ComponentRepository)
	exec := repository.NewExecutor(config.Concurrency, repoLogger)
	deps := repository.Deps{
		Store:    store,
		Probe:    p,
		Identity: identity.Static(config.UserID),
		Locks:    cache.NewKeyMutex(),
		Executor: exec,
		Logger:   repoLogger,
	}
	if feed != nil {
		deps.Publisher = feed
	}

	svc := services.New(gw, deps, services.Options{Executor: exec, Fallback: config.Fallbacks})

	f.logger.InfoContext(ctx, "Initialized backend",
		"store", config.Store,
		"gateway", config.Gateway,
		"offline", config.Offline,
		"amqp_enabled", feed != nil)

	return &Stack{
		Store:    store,
		Gateway:  gw,
		Probe:    p,
		Services: svc,
		Feed:     feed,
		Cleanup: func() error {
			exec.Wait()
			var errs []error
			if feed != nil {
				errs = append(errs, feed.Close())
			}
			errs = append(errs, shared.Release())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) openStore(config Config) (*cache.Shared, error) {
	var backend cache.Backend
	switch config.Store {
	case SQLiteStore:
		repo, err := storage.NewCacheRepository(config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite cache: %w", err)
		}
		backend = repo
	case MemoryStore:
		backend = cache.NewMemoryBackend(config.MaxEntries)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Store)
	}

	store := cache.NewStore(backend, config.Policy, cache.WithLogger(f.logger.WithComponent(log.ComponentCache)))
	f.logger.Info("Initialized cache store", "store", config.Store, "db_path", config.DBPath)
	return cache.NewShared(store), nil
}

func (f *DefaultFactory) createGateway(config Config) (remote.Gateway, error) {
	switch config.Gateway {
	case HTTPGateway:
		gw, err := httpapi.New(httpapi.Config{
			BaseURL: config.BaseURL,
			Token:   config.Token,
			Timeout: config.Timeout,
			Logger:  f.logger.WithComponent(log.ComponentRemote),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize HTTP gateway: %w", err)
		}
		return gw, nil
	case MemoryGateway:
		return memory.NewSeeded(config.UserID), nil
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", config.Gateway)
	}
}

func (f *DefaultFactory) createProbe(config Config) probe.Probe {
	if config.Offline {
		return probe.Static(false)
	}
	addr := config.ProbeAddr
	if addr == "" && config.Gateway == HTTPGateway {
		addr = probeAddr(config.BaseURL)
	}
	if addr == "" {
		return probe.Static(true)
	}
	return probe.NewDial(addr, config.ProbeTimeout, f.logger.WithComponent(log.ComponentProbe))
}

// probeAddr derives host:port from the API base URL.
func probeAddr(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

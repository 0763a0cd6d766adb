package backend

import (
	"context"

	"fincache/internal/amqp"
	"fincache/internal/cache"
	"fincache/internal/probe"
	"fincache/internal/remote"
	"fincache/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Stack is everything a process needs to serve the finance domains.
type Stack struct {
	Store    *cache.Store
	Gateway  remote.Gateway
	Probe    probe.Probe
	Services *services.Services
	// Feed is nil when the change feed is disabled or unreachable.
	Feed    *amqp.Client
	Cleanup CleanupFunc
}

// Factory builds stacks based on configuration
type Factory interface {
	Build(ctx context.Context, config Config) (*Stack, error)
}

// StoreType selects the cache persistence
type StoreType string

const (
	MemoryStore StoreType = "memory"
	SQLiteStore StoreType = "sqlite"
)

// String implements fmt.Stringer
func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case MemoryStore, SQLiteStore:
		return true
	default:
		return false
	}
}

// GatewayType selects the remote implementation
type GatewayType string

const (
	HTTPGateway   GatewayType = "http"
	MemoryGateway GatewayType = "memory"
)

func (gt GatewayType) String() string {
	return string(gt)
}

func (gt GatewayType) IsValid() bool {
	switch gt {
	case HTTPGateway, MemoryGateway:
		return true
	default:
		return false
	}
}

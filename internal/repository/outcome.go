// Package repository holds the two generic engines every domain is built on:
// Fetcher (remote first, cache fallback) and Mutator (remote write, then
// in-place cache patch). Both report results as an Outcome and never return
// errors or panic across their boundary.
package repository

import (
	"errors"
	"time"

	"fincache/internal/log"
	"fincache/internal/remote"
)

// Status is the tag of an Outcome.
type Status int

const (
	StatusFailed Status = iota
	StatusFresh
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	default:
		return "failed"
	}
}

// Outcome is the result of a fetch or mutation: fresh data from the remote,
// stale data served from cache after a remote failure, or a failure.
type Outcome[T any] struct {
	Status Status
	Value  T
	// StoredAt is when a stale value was cached.
	StoredAt time.Time
	Err      error
}

func Fresh[T any](v T) Outcome[T] {
	return Outcome[T]{Status: StatusFresh, Value: v}
}

func Stale[T any](v T, storedAt time.Time) Outcome[T] {
	return Outcome[T]{Status: StatusStale, Value: v, StoredAt: storedAt}
}

func Failed[T any](err error) Outcome[T] {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Outcome[T]{Status: StatusFailed, Err: err}
}

// OK reports whether the outcome carries a value.
func (o Outcome[T]) OK() bool { return o.Status != StatusFailed }

// IsStale reports whether the value came from cache.
func (o Outcome[T]) IsStale() bool { return o.Status == StatusStale }

// Get returns the value, or the failure.
func (o Outcome[T]) Get() (T, error) {
	if o.Status == StatusFailed {
		var zero T
		return zero, o.Err
	}
	return o.Value, nil
}

// Map converts the value of an outcome, keeping its status.
func Map[T, U any](o Outcome[T], fn func(T) U) Outcome[U] {
	if o.Status == StatusFailed {
		return Failed[U](o.Err)
	}
	return Outcome[U]{Status: o.Status, Value: fn(o.Value), StoredAt: o.StoredAt}
}

// Error categories. The transport, server and shape errors are the gateway's
// own values so errors.Is works across both layers.
var (
	ErrOffline       = errors.New("no connectivity")
	ErrTransport     = remote.ErrTransport
	ErrServer        = remote.ErrServer
	ErrShapeMismatch = remote.ErrShapeMismatch
	ErrCacheMiss     = errors.New("no usable cached data")
)

// Reason classifies err for logs. A cache miss reports its underlying cause.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOffline):
		return log.ErrorTypeOffline
	case errors.Is(err, ErrServer):
		return log.ErrorTypeServer
	case errors.Is(err, ErrShapeMismatch):
		return log.ErrorTypeShape
	case errors.Is(err, ErrTransport):
		return log.ErrorTypeTransport
	case errors.Is(err, ErrCacheMiss):
		return log.ErrorTypeCacheMiss
	default:
		return log.ErrorTypeInternal
	}
}

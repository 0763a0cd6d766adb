package repository

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"fincache/internal/log"
)

// Future is the pending Outcome of a background call. It completes exactly once.
type Future[T any] struct {
	done chan struct{}
	out  Outcome[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(o Outcome[T]) {
	f.out = o
	close(f.done)
}

// Done is closed once the outcome is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the outcome is available.
func (f *Future[T]) Wait() Outcome[T] {
	<-f.done
	return f.out
}

// WaitContext is Wait bounded by ctx. An expired ctx yields Failed(ctx.Err())
// while the call itself keeps running.
func (f *Future[T]) WaitContext(ctx context.Context) Outcome[T] {
	select {
	case <-f.done:
		return f.out
	case <-ctx.Done():
		return Failed[T](ctx.Err())
	}
}

// Then delivers the outcome to cb from a background goroutine once it is ready.
func (f *Future[T]) Then(cb Callback[T]) {
	go func() {
		Deliver(f.Wait(), cb)
	}()
}

// Callback is the hook-style delivery used by UI code. OnCacheFlag is optional
// and runs before OnSuccess with whether the value came from cache.
type Callback[T any] struct {
	OnSuccess   func(T)
	OnError     func(msg string)
	OnCacheFlag func(stale bool)
}

// Deliver invokes exactly one of OnSuccess or OnError for o.
func Deliver[T any](o Outcome[T], cb Callback[T]) {
	if !o.OK() {
		if cb.OnError != nil {
			cb.OnError(o.Err.Error())
		}
		return
	}
	if cb.OnCacheFlag != nil {
		cb.OnCacheFlag(o.IsStale())
	}
	if cb.OnSuccess != nil {
		cb.OnSuccess(o.Value)
	}
}

// DefaultConcurrency bounds an Executor created with a non-positive size.
const DefaultConcurrency = 4

// Executor runs engine calls in the background with bounded concurrency.
// Submitting never blocks the caller.
type Executor struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *log.Logger
}

func NewExecutor(concurrency int, logger *log.Logger) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = log.Default(log.ComponentRepository)
	}
	return &Executor{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: logger,
	}
}

// Submit schedules fn and returns its Future. A panic inside fn becomes a
// Failed outcome; a ctx cancelled while waiting for a slot does too.
func Submit[T any](e *Executor, ctx context.Context, fn func(ctx context.Context) Outcome[T]) *Future[T] {
	f := newFuture[T]()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.sem.Acquire(ctx, 1); err != nil {
			f.complete(Failed[T](err))
			return
		}
		defer e.sem.Release(1)
		f.complete(run(e, ctx, fn))
	}()
	return f
}

func run[T any](e *Executor, ctx context.Context, fn func(ctx context.Context) Outcome[T]) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Background call panicked",
				log.FieldError, r,
				"stack", string(debug.Stack()))
			out = Failed[T](fmt.Errorf("internal error: %v", r))
		}
	}()
	return fn(ctx)
}

// Wait blocks until every submitted call has completed.
func (e *Executor) Wait() {
	e.wg.Wait()
}

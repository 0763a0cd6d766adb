package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fincache/internal/amqp"
	"fincache/internal/identity"
	"fincache/internal/log"
	"fincache/internal/probe"
	"fincache/internal/services"
)

type fakeRefresher struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func newRefreshers() (map[string]services.Refresher, map[string]*fakeRefresher) {
	fakes := map[string]*fakeRefresher{}
	out := map[string]services.Refresher{}
	for _, d := range services.Domains {
		f := &fakeRefresher{}
		fakes[d] = f
		out[d] = f
	}
	return out, fakes
}

func TestWarmOnceRefreshesEveryDomain(t *testing.T) {
	refreshers, fakes := newRefreshers()
	w := NewWarmer(refreshers, probe.Static(true), time.Minute, 2, log.Discard())

	if err := w.WarmOnce(context.Background()); err != nil {
		t.Fatalf("WarmOnce() error = %v", err)
	}
	for d, f := range fakes {
		if got := f.calls.Load(); got != 1 {
			t.Errorf("%s refreshed %d times, want 1", d, got)
		}
	}
}

func TestWarmOnceCollectsFailures(t *testing.T) {
	refreshers, fakes := newRefreshers()
	boom := errors.New("boom")
	fakes[services.DomainBudgets].err = boom
	w := NewWarmer(refreshers, probe.Static(true), time.Minute, 0, log.Discard())

	err := w.WarmOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("WarmOnce() error = %v, want boom", err)
	}
	if got := fakes[services.DomainTransactions].calls.Load(); got != 1 {
		t.Errorf("a failing domain stopped the others: transactions refreshed %d times", got)
	}
}

func TestWarmOnceSkipsOffline(t *testing.T) {
	refreshers, fakes := newRefreshers()
	w := NewWarmer(refreshers, probe.Static(false), time.Minute, 0, log.Discard())

	if err := w.WarmOnce(context.Background()); err != nil {
		t.Fatalf("WarmOnce() error = %v", err)
	}
	for d, f := range fakes {
		if f.calls.Load() != 0 {
			t.Errorf("%s refreshed while offline", d)
		}
	}
}

func TestWarmOnceBoundsConcurrency(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	refreshers := map[string]services.Refresher{}
	for _, d := range services.Domains {
		refreshers[d] = refreshFunc(func(ctx context.Context) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		})
	}

	w := NewWarmer(refreshers, probe.Static(true), time.Minute, 2, log.Discard())
	if err := w.WarmOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

type refreshFunc func(ctx context.Context) error

func (f refreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

func TestRunStopsOnCancel(t *testing.T) {
	refreshers, fakes := newRefreshers()
	w := NewWarmer(refreshers, probe.Static(true), 10*time.Millisecond, 0, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for fakes[services.DomainCategories].calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("warmer did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestChangeHandler(t *testing.T) {
	tests := []struct {
		name    string
		msg     amqp.ChangeMessage
		want    []string
		wantErr bool
	}{
		{
			name: "own origin ignored",
			msg:  amqp.ChangeMessage{Resource: services.DomainBudgets, Op: "add", UserID: 1, Origin: "self"},
		},
		{
			name: "other user ignored",
			msg:  amqp.ChangeMessage{Resource: services.DomainBudgets, Op: "add", UserID: 2, Origin: "peer"},
		},
		{
			name: "budget change refreshes budgets",
			msg:  amqp.ChangeMessage{Resource: services.DomainBudgets, Op: "update", UserID: 1, Origin: "peer"},
			want: []string{services.DomainBudgets},
		},
		{
			name: "transaction change refreshes statistics too",
			msg:  amqp.ChangeMessage{Resource: services.DomainTransactions, Op: "delete", ID: 4, UserID: 1, Origin: "peer"},
			want: []string{services.DomainTransactions, services.DomainStatistics},
		},
		{
			name: "unknown domain acknowledged",
			msg:  amqp.ChangeMessage{Resource: "accounts", Op: "add", UserID: 1, Origin: "peer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refreshers, fakes := newRefreshers()
			h := NewChangeHandler("self", identity.Static(1), refreshers, log.Discard())

			err := h.Handle(context.Background(), &tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}

			want := map[string]bool{}
			for _, d := range tt.want {
				want[d] = true
			}
			for d, f := range fakes {
				got := f.calls.Load()
				if want[d] && got != 1 {
					t.Errorf("%s refreshed %d times, want 1", d, got)
				}
				if !want[d] && got != 0 {
					t.Errorf("%s refreshed %d times, want 0", d, got)
				}
			}
		})
	}
}

func TestChangeHandlerReportsRefreshFailure(t *testing.T) {
	refreshers, fakes := newRefreshers()
	fakes[services.DomainStatistics].err = errors.New("no connectivity")
	h := NewChangeHandler("self", identity.Static(1), refreshers, log.Discard())

	msg := &amqp.ChangeMessage{Resource: services.DomainTransactions, Op: "add", UserID: 1, Origin: "peer"}
	if err := h.Handle(context.Background(), msg); err == nil {
		t.Fatal("Handle() should fail so the message is requeued")
	}
	if fakes[services.DomainTransactions].calls.Load() != 1 {
		t.Error("transactions not refreshed")
	}
}

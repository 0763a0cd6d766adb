package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fincache/internal/log"
)

func TestDeliverInvokesExactlyOneHook(t *testing.T) {
	tests := []struct {
		name        string
		outcome     Outcome[int]
		wantSuccess int
		wantError   int
		wantFlag    *bool
	}{
		{"fresh", Fresh(1), 1, 0, ptr(false)},
		{"stale", Stale(1, time.Now()), 1, 0, ptr(true)},
		{"failed", Failed[int](ErrOffline), 0, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var success, failure int
			var flag *bool
			Deliver(tt.outcome, Callback[int]{
				OnSuccess:   func(int) { success++ },
				OnError:     func(string) { failure++ },
				OnCacheFlag: func(stale bool) { flag = &stale },
			})
			if success != tt.wantSuccess || failure != tt.wantError {
				t.Fatalf("success=%d error=%d", success, failure)
			}
			if (flag == nil) != (tt.wantFlag == nil) || (flag != nil && *flag != *tt.wantFlag) {
				t.Fatalf("cache flag = %v, want %v", flag, tt.wantFlag)
			}
		})
	}

	// Hooks are optional.
	Deliver(Fresh(1), Callback[int]{})
	Deliver(Failed[int](ErrOffline), Callback[int]{})
}

func ptr(b bool) *bool { return &b }

func TestSubmitRunsInBackground(t *testing.T) {
	ex := NewExecutor(2, log.Discard())
	release := make(chan struct{})

	f := Submit(ex, context.Background(), func(context.Context) Outcome[string] {
		<-release
		return Fresh("done")
	})

	select {
	case <-f.Done():
		t.Fatal("future completed before the call finished")
	default:
	}
	close(release)

	if out := f.Wait(); out.Status != StatusFresh || out.Value != "done" {
		t.Fatalf("Wait = %+v", out)
	}
	ex.Wait()
}

func TestSubmitRecoversPanics(t *testing.T) {
	ex := NewExecutor(1, log.Discard())
	f := Submit(ex, context.Background(), func(context.Context) Outcome[int] {
		panic("boom")
	})
	out := f.Wait()
	if out.OK() || !strings.Contains(out.Err.Error(), "boom") {
		t.Fatalf("panic outcome = %+v", out)
	}

	// The slot must have been released.
	if out := Submit(ex, context.Background(), func(context.Context) Outcome[int] { return Fresh(1) }).Wait(); !out.OK() {
		t.Fatalf("executor stuck after panic: %+v", out)
	}
}

func TestSubmitHonoursCancelledContextWhileQueued(t *testing.T) {
	ex := NewExecutor(1, log.Discard())
	release := make(chan struct{})
	first := Submit(ex, context.Background(), func(context.Context) Outcome[int] {
		<-release
		return Fresh(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queued := Submit(ex, ctx, func(context.Context) Outcome[int] { return Fresh(2) })
	if out := queued.Wait(); !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("queued call = %+v, want context.Canceled", out)
	}

	close(release)
	if out := first.Wait(); out.Value != 1 {
		t.Fatalf("first = %+v", out)
	}
}

func TestWaitContextAndThen(t *testing.T) {
	ex := NewExecutor(1, log.Discard())
	release := make(chan struct{})
	f := Submit(ex, context.Background(), func(context.Context) Outcome[int] {
		<-release
		return Stale(7, time.Time{})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if out := f.WaitContext(ctx); !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Fatalf("WaitContext = %+v", out)
	}

	got := make(chan int, 1)
	stale := make(chan bool, 1)
	f.Then(Callback[int]{
		OnSuccess:   func(v int) { got <- v },
		OnCacheFlag: func(s bool) { stale <- s },
	})
	close(release)

	select {
	case v := <-got:
		if v != 7 || !<-stale {
			t.Fatalf("Then delivered %d stale=%v", v, false)
		}
	case <-time.After(time.Second):
		t.Fatal("Then never delivered")
	}
}

func TestOutcomeHelpers(t *testing.T) {
	v, err := Fresh(3).Get()
	if v != 3 || err != nil {
		t.Fatalf("Get = %d, %v", v, err)
	}
	if _, err := Failed[int](ErrOffline).Get(); !errors.Is(err, ErrOffline) {
		t.Fatalf("Get on failed = %v", err)
	}
	if Failed[int](nil).Err == nil {
		t.Fatal("Failed(nil) must still carry an error")
	}

	stored := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := Map(Stale(2, stored), func(n int) string { return strings.Repeat("x", n) })
	if m.Status != StatusStale || m.Value != "xx" || !m.StoredAt.Equal(stored) {
		t.Fatalf("Map = %+v", m)
	}
	if Map(Failed[int](ErrOffline), func(int) int { return 1 }).OK() {
		t.Fatal("Map must keep failures")
	}

	if StatusFresh.String() != "fresh" || StatusStale.String() != "stale" || StatusFailed.String() != "failed" {
		t.Fatal("status names changed")
	}
}

func TestParseFallback(t *testing.T) {
	for in, want := range map[string]Fallback{"": FallbackValid, "valid-only": FallbackValid, "any-cached": FallbackAnyCached, "any": FallbackAnyCached} {
		got, err := ParseFallback(in)
		if err != nil || got != want {
			t.Errorf("ParseFallback(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFallback("sometimes"); err == nil {
		t.Fatal("unknown mode should fail")
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fincache/internal/cache"
)

type fakeWriter struct {
	mu     sync.Mutex
	nextID int64
	err    error
	calls  int
}

func (w *fakeWriter) call() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.err
}

func (w *fakeWriter) add(_ context.Context, it item) (item, error) {
	if err := w.call(); err != nil {
		return item{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if it.ID == 0 {
		w.nextID++
		it.ID = 100 + w.nextID
	}
	return it, nil
}

func (w *fakeWriter) update(_ context.Context, it item) (item, error) {
	return it, w.call()
}

func (w *fakeWriter) delete(context.Context, item) error {
	return w.call()
}

func newItemMutator(e *env, w *fakeWriter) *Mutator[item] {
	return NewMutator(MutateConfig[item]{
		Domain:  "budgets",
		Key:     func() string { return "budgets:1" },
		ItemKey: func(id int64) string { return fmt.Sprintf("budgets:1:item:%d", id) },
		Add:     w.add,
		Update:  w.update,
		Delete:  w.delete,
	}, e.deps)
}

func seed(t *testing.T, e *env, items ...item) {
	t.Helper()
	if err := cache.PutValue(e.store, "budgets:1", items); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestMutationOfflineGuard(t *testing.T) {
	e := newEnv(t)
	w := &fakeWriter{}
	m := newItemMutator(e, w)
	seed(t, e, item{ID: 1}, item{ID: 2})
	before, _ := e.store.Get("budgets:1")
	e.net.Set(false)

	ctx := context.Background()
	outcomes := map[string]Outcome[item]{
		"add":    m.Add(ctx, item{ID: 3}),
		"update": m.Update(ctx, item{ID: 2, Amount: 50}),
		"delete": m.Delete(ctx, item{ID: 1}),
	}
	for name, out := range outcomes {
		if out.OK() || !errors.Is(out.Err, ErrOffline) {
			t.Errorf("%s offline = %+v, want Failed(ErrOffline)", name, out)
		}
	}
	if out := m.Clear(ctx, func(context.Context) error { return w.call() }, cache.InNamespace("budgets:1")); !errors.Is(out.Err, ErrOffline) {
		t.Errorf("clear offline = %+v", out)
	}

	if w.calls != 0 {
		t.Fatalf("remote called %d times while offline", w.calls)
	}
	after, _ := e.store.Get("budgets:1")
	if string(after.Payload) != string(before.Payload) || !after.StoredAt.Equal(before.StoredAt) {
		t.Fatalf("cache changed while offline: %s -> %s", before.Payload, after.Payload)
	}
}

func TestPatchCorrectness(t *testing.T) {
	e := newEnv(t)
	m := newItemMutator(e, &fakeWriter{})
	ctx := context.Background()

	seed(t, e, item{ID: 1}, item{ID: 2})
	if out := m.Update(ctx, item{ID: 2, Amount: 50}); out.Status != StatusFresh || out.Value.Amount != 50 {
		t.Fatalf("Update = %+v", out)
	}
	got := e.cached(t, "budgets:1")
	if !sameIDs(got, 1, 2) || got[1].Amount != 50 || got[0].Amount != 0 {
		t.Fatalf("after update = %+v", got)
	}

	if out := m.Delete(ctx, item{ID: 1}); out.Status != StatusFresh {
		t.Fatalf("Delete = %+v", out)
	}
	got = e.cached(t, "budgets:1")
	if !sameIDs(got, 2) || got[0].Amount != 50 {
		t.Fatalf("after delete = %+v", got)
	}

	seed(t, e, item{ID: 1}, item{ID: 2})
	if out := m.Add(ctx, item{ID: 3}); out.Status != StatusFresh || out.Value.ID != 3 {
		t.Fatalf("Add = %+v", out)
	}
	if got = e.cached(t, "budgets:1"); !sameIDs(got, 1, 2, 3) {
		t.Fatalf("after add = %v", ids(got))
	}
}

func TestAddAppendsServerEcho(t *testing.T) {
	e := newEnv(t)
	m := newItemMutator(e, &fakeWriter{})
	seed(t, e, item{ID: 1})

	out := m.Add(context.Background(), item{Amount: 5})
	if out.Value.ID != 101 {
		t.Fatalf("Add should return the server-assigned id, got %+v", out.Value)
	}
	if got := e.cached(t, "budgets:1"); !sameIDs(got, 1, 101) {
		t.Fatalf("cache = %v", ids(got))
	}
}

func TestRemoteFailureLeavesCacheUntouched(t *testing.T) {
	e := newEnv(t)
	w := &fakeWriter{err: fmt.Errorf("%w: reset", ErrTransport)}
	m := newItemMutator(e, w)
	seed(t, e, item{ID: 1}, item{ID: 2})

	for name, out := range map[string]Outcome[item]{
		"add":    m.Add(context.Background(), item{ID: 3}),
		"update": m.Update(context.Background(), item{ID: 1, Amount: 9}),
		"delete": m.Delete(context.Background(), item{ID: 2}),
	} {
		if !errors.Is(out.Err, ErrTransport) {
			t.Errorf("%s = %+v, want the transport error verbatim", name, out)
		}
	}
	if got := e.cached(t, "budgets:1"); !sameIDs(got, 1, 2) || got[0].Amount != 0 {
		t.Fatalf("cache = %+v", got)
	}
}

func TestUpdateWithoutMatchLeavesCollection(t *testing.T) {
	e := newEnv(t)
	m := newItemMutator(e, &fakeWriter{})
	seed(t, e, item{ID: 1})
	before, _ := e.store.Get("budgets:1")

	e.clock.Advance(time.Minute)
	if out := m.Update(context.Background(), item{ID: 42, Amount: 1}); out.Status != StatusFresh {
		t.Fatalf("unmatched update should still succeed, got %+v", out)
	}
	after, _ := e.store.Get("budgets:1")
	if !after.StoredAt.Equal(before.StoredAt) || string(after.Payload) != string(before.Payload) {
		t.Fatal("unmatched update must not rewrite the collection")
	}

	if out := m.Delete(context.Background(), item{ID: 42}); out.Status != StatusFresh {
		t.Fatalf("unmatched delete should still succeed, got %+v", out)
	}
}

func TestMutationWithoutCachedCollectionWritesNothing(t *testing.T) {
	e := newEnv(t)
	m := newItemMutator(e, &fakeWriter{})

	if out := m.Add(context.Background(), item{ID: 1}); out.Status != StatusFresh {
		t.Fatalf("Add = %+v", out)
	}
	if _, ok := e.store.Get("budgets:1"); ok {
		t.Fatal("a mutation must not create a collection that was never fetched")
	}
}

func TestUnreadableCollectionIsDropped(t *testing.T) {
	e := newEnv(t)
	m := newItemMutator(e, &fakeWriter{})
	e.store.Put("budgets:1", []byte(`"garbage"`))

	if out := m.Add(context.Background(), item{ID: 1}); out.Status != StatusFresh {
		t.Fatalf("Add = %+v", out)
	}
	if _, ok := e.store.Get("budgets:1"); ok {
		t.Fatal("unreadable collection should have been removed")
	}
}

func TestConcurrentMutationsDoNotLosePatches(t *testing.T) {
	e := newEnv(t)
	w := &fakeWriter{}
	m := newItemMutator(e, w)
	seed(t, e, item{ID: 1}, item{ID: 2})

	const adds = 40
	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Add(context.Background(), item{})
		}()
	}
	// Updates race with the adds on the same key.
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update(context.Background(), item{ID: 2, Amount: 7})
		}()
	}
	wg.Wait()

	got := e.cached(t, "budgets:1")
	if len(got) != adds+2 {
		t.Fatalf("collection has %d items, want %d", len(got), adds+2)
	}
	seen := map[int64]bool{}
	for _, it := range got {
		if seen[it.ID] {
			t.Fatalf("duplicate id %d", it.ID)
		}
		seen[it.ID] = true
	}
	if got[1].Amount != 7 {
		t.Fatalf("update lost: %+v", got[1])
	}
}

func TestFetchAndMutateShareLocks(t *testing.T) {
	e := newEnv(t)
	r := &fakeRemote{items: []item{{ID: 1}}}
	f := newItemFetcher(e, r, FallbackValid)
	m := newItemMutator(e, &fakeWriter{})

	f.Fetch(context.Background(), "")
	m.Add(context.Background(), item{ID: 2})

	e.net.Set(false)
	out := f.Fetch(context.Background(), "")
	if out.Status != StatusStale || !sameIDs(out.Value, 1, 2) {
		t.Fatalf("stale read after add = %+v", out)
	}
}

func TestClearRemovesMatchingEntries(t *testing.T) {
	e := newEnv(t)
	w := &fakeWriter{}
	m := newItemMutator(e, w)
	seed(t, e, item{ID: 1})
	e.store.Put("budgets:1:item:1", []byte(`{"id":1}`))
	e.store.Put("budgets:2", []byte(`[]`))

	out := m.Clear(context.Background(), func(context.Context) error { return w.call() }, cache.InNamespace("budgets:1"))
	if out.Status != StatusFresh || out.Value != 2 {
		t.Fatalf("Clear = %+v", out)
	}
	if _, ok := e.store.Get("budgets:2"); !ok {
		t.Fatal("entries outside the namespace must survive")
	}

	w.err = errors.New("denied")
	seed(t, e, item{ID: 1})
	if out := m.Clear(context.Background(), func(context.Context) error { return w.call() }, cache.InNamespace("budgets:1")); out.OK() {
		t.Fatalf("Clear with remote failure = %+v", out)
	}
	if _, ok := e.store.Get("budgets:1"); !ok {
		t.Fatal("failed clear must leave the cache alone")
	}
}

func TestItemKeyMaintenance(t *testing.T) {
	e := newEnv(t)
	m := newItemMutator(e, &fakeWriter{})
	seed(t, e, item{ID: 1})
	if err := cache.PutValue(e.store, "budgets:1:item:1", item{ID: 1}); err != nil {
		t.Fatal(err)
	}

	m.Update(context.Background(), item{ID: 1, Amount: 3})
	it, _, err := cache.GetValue[item](e.store, "budgets:1:item:1")
	if err != nil || it.Amount != 3 {
		t.Fatalf("item entry = %+v err=%v", it, err)
	}

	m.Update(context.Background(), item{ID: 9, Amount: 3})
	if _, ok := e.store.Get("budgets:1:item:9"); ok {
		t.Fatal("update must not create item entries")
	}

	m.Delete(context.Background(), item{ID: 1})
	if _, ok := e.store.Get("budgets:1:item:1"); ok {
		t.Fatal("delete should drop the item entry")
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (p *recordingPublisher) PublishChange(_ context.Context, c Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

type fixedUser int64

func (u fixedUser) CurrentUserID() int64 { return int64(u) }

func TestPublisherIsBestEffort(t *testing.T) {
	e := newEnv(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	e.deps.Publisher = pub
	e.deps.Identity = fixedUser(1)
	m := newItemMutator(e, &fakeWriter{})

	out := m.Update(context.Background(), item{ID: 5})
	if out.Status != StatusFresh {
		t.Fatalf("publish failure leaked into the outcome: %+v", out)
	}
	e.deps.Executor.Wait()
	if len(pub.changes) != 1 {
		t.Fatalf("changes = %+v", pub.changes)
	}
	c := pub.changes[0]
	if c.Domain != "budgets" || c.Op != "update" || c.ID != 5 || c.UserID != 1 {
		t.Fatalf("change = %+v", c)
	}

	e.net.Set(false)
	m.Update(context.Background(), item{ID: 5})
	e.deps.Executor.Wait()
	if len(pub.changes) != 1 {
		t.Fatal("failed mutations must not be published")
	}
}

type blockingPublisher struct {
	release chan struct{}
	done    chan Change
}

func (p *blockingPublisher) PublishChange(ctx context.Context, c Change) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.done <- c
	return nil
}

func TestSlowPublisherDoesNotDelayMutation(t *testing.T) {
	e := newEnv(t)
	pub := &blockingPublisher{release: make(chan struct{}), done: make(chan Change, 1)}
	e.deps.Publisher = pub
	m := newItemMutator(e, &fakeWriter{})
	seed(t, e, item{ID: 1})

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan Outcome[item], 1)
	go func() { returned <- m.Add(ctx, item{ID: 2}) }()

	select {
	case out := <-returned:
		if out.Status != StatusFresh {
			t.Fatalf("Add = %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("Add waited for the publisher")
	}
	if got := e.cached(t, "budgets:1"); !sameIDs(got, 1, 2) {
		t.Fatalf("cached = %v", ids(got))
	}

	// The caller's ctx ending does not abort the notification.
	cancel()
	close(pub.release)
	e.deps.Executor.Wait()
	select {
	case c := <-pub.done:
		if c.Op != "add" || c.ID != 2 {
			t.Fatalf("change = %+v", c)
		}
	default:
		t.Fatal("change was never published")
	}
}

func TestApplyCustomMutation(t *testing.T) {
	e := newEnv(t)
	m := newItemMutator(e, &fakeWriter{})
	seed(t, e, item{ID: 1}, item{ID: 2, Amount: 4})

	out := Apply(context.Background(), m, "zero",
		func(context.Context) (int, error) { return 2, nil },
		func(items []item, _ int) ([]item, bool) {
			out := make([]item, len(items))
			for i, it := range items {
				it.Amount = 0
				out[i] = it
			}
			return out, true
		})
	if out.Status != StatusFresh || out.Value != 2 {
		t.Fatalf("Apply = %+v", out)
	}
	if got := e.cached(t, "budgets:1"); got[1].Amount != 0 {
		t.Fatalf("patch not applied: %+v", got)
	}
}

func TestPatchHelpersDoNotAlias(t *testing.T) {
	in := []item{{ID: 1}, {ID: 2}}
	replaced, ok := Replace(in, item{ID: 2, Amount: 1})
	if !ok || in[1].Amount != 0 || replaced[1].Amount != 1 {
		t.Fatalf("Replace aliased its input: in=%+v out=%+v", in, replaced)
	}
	removed, ok := Remove(in, 1)
	if !ok || len(in) != 2 || !sameIDs(removed, 2) {
		t.Fatalf("Remove = %+v", removed)
	}
	if _, ok := Remove(in, 9); ok {
		t.Fatal("Remove of unknown id should report no change")
	}
	appended := Append(in[:1], item{ID: 3})
	if in[1].ID != 2 || !sameIDs(appended, 1, 3) {
		t.Fatalf("Append aliased its input: in=%+v", in)
	}
}

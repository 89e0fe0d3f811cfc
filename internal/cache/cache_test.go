package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLookupFreshAndStale(t *testing.T) {
	store := openTestStore(t)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	if err := store.Put(context.Background(), "tokenlist", "k1", []byte(`{"v":1}`), time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := store.Lookup("tokenlist", "k1", 5*time.Minute)
	if err != nil {
		t.Fatalf("Lookup fresh failed: %v", err)
	}
	if !entry.Hit || entry.Stale || !entry.Usable() {
		t.Fatalf("expected fresh hit, got %+v", entry)
	}

	now = now.Add(3 * time.Minute)
	entry, err = store.Lookup("tokenlist", "k1", 5*time.Minute)
	if err != nil {
		t.Fatalf("Lookup stale failed: %v", err)
	}
	if !entry.Stale || entry.TooStale || !entry.Usable() {
		t.Fatalf("expected stale within budget, got %+v", entry)
	}

	now = now.Add(10 * time.Minute)
	entry, err = store.Lookup("tokenlist", "k1", 5*time.Minute)
	if err != nil {
		t.Fatalf("Lookup too stale failed: %v", err)
	}
	if !entry.TooStale || entry.Usable() {
		t.Fatalf("expected too stale, got %+v", entry)
	}
}

func TestLookupMissAndNamespaces(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put(context.Background(), "a", "k", []byte("1"), time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entry, err := store.Lookup("b", "k", time.Minute)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.Hit {
		t.Fatalf("expected miss in other namespace, got %+v", entry)
	}

	if err := store.Invalidate(context.Background(), "a"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	entry, err = store.Lookup("a", "k", time.Minute)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.Hit {
		t.Fatalf("expected miss after invalidate, got %+v", entry)
	}
}

func TestPruneRemovesExpired(t *testing.T) {
	store := openTestStore(t)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	if err := store.Put(context.Background(), "tokenlist", "old", []byte("1"), time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	now = now.Add(time.Hour)
	if err := store.Prune(time.Minute); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	entry, err := store.Lookup("tokenlist", "old", -1)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.Hit {
		t.Fatalf("expected pruned entry, got %+v", entry)
	}
}

func TestConcurrentPut(t *testing.T) {
	store := openTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			if err := store.Put(context.Background(), "tokenlist", key, []byte("v"), time.Minute); err != nil {
				t.Errorf("Put %s failed: %v", key, err)
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		entry, err := store.Lookup("tokenlist", fmt.Sprintf("k%d", i), time.Minute)
		if err != nil || !entry.Hit {
			t.Fatalf("expected k%d to be stored: %+v %v", i, entry, err)
		}
	}
}

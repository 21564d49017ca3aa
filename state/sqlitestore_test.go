package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte(`{"n":1}`), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, found, err := s.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Get() = %q, %v, %v", got, found, err)
	}
	if string(got) != `{"n":1}` {
		t.Errorf("Get() = %q", got)
	}
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("one"), 0)
	s.Set(ctx, "k", []byte("two"), 0)

	got, _, _ := s.Get(ctx, "k")
	if string(got) != "two" {
		t.Errorf("Get() = %q, want two", got)
	}
}

func TestSQLiteStoreTTL(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// An already-expired entry reads as absent.
	if err := s.Set(ctx, "gone", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, found, _ := s.Get(ctx, "gone"); found {
		t.Error("Get() found expired key")
	}

	if err := s.Set(ctx, "keep", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, found, _ := s.Get(ctx, "keep"); !found {
		t.Error("Get() missed unexpired key")
	}
}

func TestSQLiteStorePrune(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	s.Set(ctx, "old", []byte("v"), time.Nanosecond)
	s.Set(ctx, "new", []byte("v"), time.Hour)
	time.Sleep(5 * time.Millisecond)

	if err := s.Prune(ctx); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if ok, _ := s.Exists(ctx, "old"); ok {
		t.Error("Exists(old) = true after prune")
	}
	if ok, _ := s.Exists(ctx, "new"); !ok {
		t.Error("Exists(new) = false after prune")
	}
}

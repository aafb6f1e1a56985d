package quickunlock

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestSQLiteStoreCRUD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quickunlock.db")
	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer store.Close()

	id := uuid.New()

	if has, err := store.Has(id); err != nil || has {
		t.Fatalf("Has on empty store = %v, %v; want false, nil", has, err)
	}
	if _, ok, err := store.Get(id); err != nil || ok {
		t.Fatalf("Get on empty store = ok=%v, %v; want false, nil", ok, err)
	}

	blob := []byte("encrypted-composite-key-blob")
	if err := store.Put(id, blob); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if has, err := store.Has(id); err != nil || !has {
		t.Fatalf("Has after Put = %v, %v; want true, nil", has, err)
	}
	got, ok, err := store.Get(id)
	if err != nil || !ok {
		t.Fatalf("Get after Put = ok=%v, %v; want true, nil", ok, err)
	}
	if string(got) != string(blob) {
		t.Fatalf("Get returned %q, want %q", got, blob)
	}

	updated := []byte("rotated-blob")
	if err := store.Put(id, updated); err != nil {
		t.Fatalf("Put (update): %v", err)
	}
	got, _, _ = store.Get(id)
	if string(got) != string(updated) {
		t.Fatalf("Get after update returned %q, want %q", got, updated)
	}

	if err := store.Clear(id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if has, err := store.Has(id); err != nil || has {
		t.Fatalf("Has after Clear = %v, %v; want false, nil", has, err)
	}

	if err := store.Clear(uuid.New()); err != nil {
		t.Fatalf("Clear of absent id should not error, got %v", err)
	}
}

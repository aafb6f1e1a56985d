package model

import (
	"bytes"
	"testing"
)

func TestBinaryPoolDedupesByContent(t *testing.T) {
	p := NewBinaryPool()

	a := p.Add([]byte("attachment one"))
	b := p.Add([]byte("attachment two"))
	if a == b {
		t.Fatal("distinct payloads must get distinct IDs")
	}

	again := p.Add([]byte("attachment one"))
	if again != a {
		t.Fatalf("identical payload got ID %d, want %d", again, a)
	}
	if p.Len() != 2 {
		t.Fatalf("pool size = %d, want 2", p.Len())
	}

	got, ok := p.Get(a)
	if !ok || !bytes.Equal(got, []byte("attachment one")) {
		t.Fatalf("Get(%d) = %q, %v", a, got, ok)
	}
}

func TestBinaryPoolPutPreservesFileIDs(t *testing.T) {
	p := NewBinaryPool()
	p.Put(5, []byte("from file"))

	if _, ok := p.Get(5); !ok {
		t.Fatal("explicit ID must be retrievable")
	}
	if id := p.Add([]byte("from file")); id != 5 {
		t.Fatalf("Add of pooled content = %d, want 5", id)
	}
	if id := p.Add([]byte("fresh")); id != 6 {
		t.Fatalf("fresh content after Put(5) got ID %d, want 6", id)
	}
}

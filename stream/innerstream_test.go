package stream

import (
	"bytes"
	"testing"
)

func TestSalsa20InnerStreamRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 64)

	enc, err := NewInnerStream(InnerStreamSalsa20, key)
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	plaintext := []byte("Title value that is protected and fairly long to span blocks")
	ciphertext := make([]byte, len(plaintext))
	enc.XOR(ciphertext, plaintext)

	dec, err := NewInnerStream(InnerStreamSalsa20, key)
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	decrypted := make([]byte, len(ciphertext))
	dec.XOR(decrypted, ciphertext)

	if !bytes.Equal(decrypted, plaintext) {
		t.Fatal("salsa20 inner stream round trip mismatch")
	}
}

func TestSalsa20InnerStreamOrderMatters(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 64)
	s := mustInnerStream(t, InnerStreamSalsa20, key)

	a := make([]byte, 5)
	s.XOR(a, []byte("Title"))
	b := make([]byte, 8)
	s.XOR(b, []byte("UserName"))

	// Decrypting out of order (b before a) must not reproduce the
	// original plaintext, proving document order is load-bearing.
	reordered := mustInnerStream(t, InnerStreamSalsa20, key)
	wrongB := make([]byte, 8)
	reordered.XOR(wrongB, b)
	if bytes.Equal(wrongB, []byte("UserName")) {
		t.Fatal("decrypting out of keystream order should not recover plaintext")
	}
}

func TestChaCha20InnerStreamRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x0A}, 64)

	enc, err := NewInnerStream(InnerStreamChaCha20, key)
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	plaintext := []byte("Password value masked by chacha20 inner stream")
	ciphertext := make([]byte, len(plaintext))
	enc.XOR(ciphertext, plaintext)

	dec, err := NewInnerStream(InnerStreamChaCha20, key)
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	decrypted := make([]byte, len(ciphertext))
	dec.XOR(decrypted, ciphertext)

	if !bytes.Equal(decrypted, plaintext) {
		t.Fatal("chacha20 inner stream round trip mismatch")
	}
}

func TestInnerStreamNoneRejected(t *testing.T) {
	if _, err := NewInnerStream(InnerStreamNone, make([]byte, 64)); err == nil {
		t.Fatal("expected error constructing a None inner stream")
	}
}

func mustInnerStream(t *testing.T, id InnerStreamID, key []byte) InnerStream {
	t.Helper()
	s, err := NewInnerStream(id, key)
	if err != nil {
		t.Fatalf("new inner stream: %v", err)
	}
	return s
}

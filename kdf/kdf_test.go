package kdf

import (
	"bytes"
	"testing"
)

func TestAESKDFTransformDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x11}, 32)
	input := bytes.Repeat([]byte{0x22}, 32)
	k := NewAESKDF(seed, 6000)

	out1, err := k.Transform(input)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	out2, err := k.Transform(input)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatalf("AES-KDF transform is not deterministic")
	}
	if len(out1) != 32 {
		t.Fatalf("transform length = %d, want 32", len(out1))
	}
}

func TestAESKDFRejectsWrongInputLength(t *testing.T) {
	k := NewAESKDF(make([]byte, 32), 10)
	if _, err := k.Transform(make([]byte, 16)); err == nil {
		t.Fatal("expected error for non-32-byte input")
	}
}

func TestAESKDFBenchmarkNonZero(t *testing.T) {
	k := NewAESKDF(make([]byte, 32), 1)
	rounds, err := k.Benchmark(MinBenchmarkMS)
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if rounds == 0 {
		t.Fatal("benchmark returned 0 rounds")
	}
}

func TestArgon2idTransformDeterministic(t *testing.T) {
	p := Params{Seed: bytes.Repeat([]byte{0x33}, 16), Parallelism: 2, Memory: 19 * 1024, Iterations: 2}
	k := NewArgon2KDF(argon2VariantID, p)
	input := bytes.Repeat([]byte{0x44}, 32)

	out1, err := k.Transform(input)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	out2, err := k.Transform(input)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatalf("argon2id transform is not deterministic")
	}
}

func TestArgon2dUnsupported(t *testing.T) {
	p := Params{Seed: bytes.Repeat([]byte{0x33}, 16), Parallelism: 1, Memory: 8 * 1024, Iterations: 2}
	k := NewArgon2KDF(argon2Variant2d, p)
	if _, err := k.Transform(make([]byte, 32)); err == nil {
		t.Fatal("expected argon2d to be reported unsupported")
	}
}

func TestToVariantMapRoundTrip(t *testing.T) {
	p := Params{
		UUID:        Argon2id,
		Seed:        bytes.Repeat([]byte{0x05}, 32),
		Parallelism: 4,
		Memory:      64 * 1024 * 1024,
		Iterations:  3,
		Version:     0x13,
	}
	m := ToVariantMap(p)
	got, err := paramsFromVariantMap(m)
	if err != nil {
		t.Fatalf("paramsFromVariantMap: %v", err)
	}
	if got.UUID != p.UUID || got.Parallelism != p.Parallelism || got.Memory != p.Memory ||
		got.Iterations != p.Iterations || got.Version != p.Version || !bytes.Equal(got.Seed, p.Seed) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestFromVariantMapUnknownUUID(t *testing.T) {
	m := ToVariantMap(Params{UUID: [16]byte{0xFF}, Seed: make([]byte, 32), Rounds: 10})
	if _, err := FromVariantMap(m); err == nil {
		t.Fatal("expected unsupported-KDF error for unknown UUID")
	}
}

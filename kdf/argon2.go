package kdf

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/kdbxgo/kdbxvault/errs"
)

type argon2Variant int

const (
	argon2Variant2d argon2Variant = iota
	argon2VariantID
)

// Argon2 transforms the composite key with Argon2d or Argon2id, using
// golang.org/x/crypto/argon2.
type Argon2 struct {
	variant     argon2Variant
	seed        []byte
	parallelism uint32
	memoryKiB   uint32
	iterations  uint32
	version     uint32
}

// NewArgon2idKDF builds an Argon2id KDF from p, the variant new
// databases should prefer (Argon2d round-trips its parameters but
// cannot be transformed by this build).
func NewArgon2idKDF(p Params) *Argon2 {
	return NewArgon2KDF(argon2VariantID, p)
}

// NewArgon2dKDF builds an Argon2d KDF from p, for reading/round-tripping
// databases created by other clients with that variant.
func NewArgon2dKDF(p Params) *Argon2 {
	return NewArgon2KDF(argon2Variant2d, p)
}

// NewArgon2KDF builds an Argon2d or Argon2id KDF from p. p.Memory is in
// bytes per the variant-map convention; Argon2's API wants KiB.
func NewArgon2KDF(variant argon2Variant, p Params) *Argon2 {
	version := p.Version
	if version == 0 {
		version = argon2.Version
	}
	return &Argon2{
		variant:     variant,
		seed:        append([]byte(nil), p.Seed...),
		parallelism: p.Parallelism,
		memoryKiB:   uint32(p.Memory / 1024),
		iterations:  uint32(p.Iterations),
		version:     version,
	}
}

func (k *Argon2) UUID() uuid.UUID {
	if k.variant == argon2VariantID {
		return Argon2id
	}
	return Argon2d
}

func (k *Argon2) Params() Params {
	return Params{
		UUID:        k.UUID(),
		Seed:        k.seed,
		Parallelism: k.parallelism,
		Memory:      uint64(k.memoryKiB) * 1024,
		Iterations:  uint64(k.iterations),
		Version:     k.version,
	}
}

// Transform hashes input (the composite key's raw SHA-256) with Argon2,
// producing a 32-byte transformed key.
//
// golang.org/x/crypto/argon2 only exports the 'i' and 'id' variants;
// Argon2d databases parse and round-trip their variant-map parameters
// correctly but cannot be transformed by this build.
func (k *Argon2) Transform(input []byte) ([]byte, error) {
	if k.variant != argon2VariantID {
		return nil, errs.New(errs.KindUnsupportedVersion, "argon2d: not supported by this build's crypto library; use argon2id")
	}
	if len(k.seed) == 0 {
		return nil, errs.New(errs.KindMalformed, "argon2: missing seed")
	}
	if k.parallelism == 0 || k.memoryKiB == 0 || k.iterations == 0 {
		return nil, errs.New(errs.KindMalformed, "argon2: parallelism/memory/iterations must be set")
	}
	return argon2.IDKey(input, k.seed, k.iterations, k.memoryKiB, uint8(k.parallelism), 32), nil
}

// Benchmark measures how many Argon2id iterations fit in targetMS at
// this KDF's configured memory/parallelism; only iterations are
// adjusted.
func (k *Argon2) Benchmark(targetMS int) (uint64, error) {
	if k.variant != argon2VariantID {
		return 0, errs.New(errs.KindUnsupportedVersion, "argon2d: not supported by this build's crypto library; use argon2id")
	}
	if k.parallelism == 0 || k.memoryKiB == 0 {
		return 0, errs.New(errs.KindMalformed, "argon2: parallelism/memory must be set before benchmarking")
	}
	seed := k.seed
	if len(seed) == 0 {
		seed = make([]byte, 32)
	}
	input := make([]byte, 32)
	return benchmarkRounds(targetMS, func(rounds uint64) time.Duration {
		start := time.Now()
		argon2.IDKey(input, seed, uint32(rounds), k.memoryKiB, uint8(k.parallelism), 32)
		return time.Since(start)
	}), nil
}

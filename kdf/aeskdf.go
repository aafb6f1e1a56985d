package kdf

import (
	"crypto/aes"
	"crypto/sha256"
	"time"

	"github.com/google/uuid"
	"github.com/kdbxgo/kdbxvault/errs"
)

// AESKDF transforms the composite key by iterating AES-256 single-block
// encryption (ECB, no padding) Rounds times over each half of the input,
// keyed by Seed, then SHA-256-hashing the two halves back together.
type AESKDF struct {
	seed   []byte
	rounds uint64
	// kdbx3 selects which well-known UUID Params()/UUID() report; the
	// transform itself is identical for both transports.
	kdbx3 bool
}

// NewAESKDF returns an AES-KDF keyed by seed (must be 32 bytes) with the
// given round count, tagged as the KDBX4 variant-map transport.
func NewAESKDF(seed []byte, rounds uint64) *AESKDF {
	return &AESKDF{seed: append([]byte(nil), seed...), rounds: rounds}
}

// NewAESKDF3 is NewAESKDF tagged as the KDBX3 dedicated-header-fields
// transport.
func NewAESKDF3(seed []byte, rounds uint64) *AESKDF {
	k := NewAESKDF(seed, rounds)
	k.kdbx3 = true
	return k
}

func (k *AESKDF) UUID() uuid.UUID {
	if k.kdbx3 {
		return AESKDBX3
	}
	return AESKDBX4
}

func (k *AESKDF) Params() Params {
	return Params{UUID: k.UUID(), Seed: k.seed, Rounds: k.rounds}
}

// Transform runs the AES-KDF rounds over input, which must be exactly 32
// bytes (the two concatenated composite-key halves).
func (k *AESKDF) Transform(input []byte) ([]byte, error) {
	if len(input) != 32 {
		return nil, errs.New(errs.KindMalformed, "aes-kdf: input must be 32 bytes, got %d", len(input))
	}
	if len(k.seed) != 32 {
		return nil, errs.New(errs.KindMalformed, "aes-kdf: seed must be 32 bytes, got %d", len(k.seed))
	}
	block, err := aes.NewCipher(k.seed)
	if err != nil {
		return nil, errs.Wrap(errs.KindMalformed, err, "aes-kdf: new cipher")
	}

	left := append([]byte(nil), input[:16]...)
	right := append([]byte(nil), input[16:]...)
	for i := uint64(0); i < k.rounds; i++ {
		block.Encrypt(left, left)
		block.Encrypt(right, right)
	}

	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil), nil
}

// Benchmark measures how many rounds AES-KDF can perform in targetMS
// milliseconds.
func (k *AESKDF) Benchmark(targetMS int) (uint64, error) {
	seed := k.seed
	if len(seed) != 32 {
		seed = make([]byte, 32)
	}
	block, err := aes.NewCipher(seed)
	if err != nil {
		return 0, errs.Wrap(errs.KindMalformed, err, "aes-kdf: benchmark cipher")
	}
	left := make([]byte, 16)
	right := make([]byte, 16)
	return benchmarkRounds(targetMS, func(rounds uint64) time.Duration {
		start := time.Now()
		for i := uint64(0); i < rounds; i++ {
			block.Encrypt(left, left)
			block.Encrypt(right, right)
		}
		return time.Since(start)
	}), nil
}

var errNoUUID = errs.New(errs.KindMalformed, "kdf: variant map missing $UUID")

func unsupportedKDF(id uuid.UUID) error {
	return errs.New(errs.KindUnsupportedVersion, "kdf: unsupported KDF %s", id)
}

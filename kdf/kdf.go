// Package kdf implements the key-derivation functions selectable by a
// KDBX database: AES-KDF (KDBX3 and KDBX4 transports) and Argon2d/
// Argon2id.
package kdf

import (
	"time"

	"github.com/google/uuid"
	"github.com/kdbxgo/kdbxvault/variantmap"
)

// Well-known KDF UUID tags. AESKDBX3 and AESKDBX4
// are the same algorithm transported differently: KDBX3 carries its
// seed/rounds in dedicated outer-header fields, KDBX4 carries them (and
// everything else) in the variant map.
var (
	AESKDBX3 = uuid.UUID{0xC9, 0xD9, 0xF3, 0x9A, 0x62, 0x8A, 0x44, 0x60, 0xBF, 0x74, 0x0D, 0x08, 0xC1, 0x8A, 0x4F, 0xEA}
	AESKDBX4 = uuid.UUID{0x7C, 0x02, 0xBB, 0x82, 0x79, 0xA7, 0x4A, 0xC0, 0x92, 0x7D, 0x11, 0x4A, 0x00, 0x64, 0x82, 0x38}
	Argon2d  = uuid.UUID{0xEF, 0x63, 0x6D, 0xDF, 0x8C, 0x29, 0x44, 0x4B, 0x91, 0xF7, 0xA9, 0xA4, 0x03, 0xE3, 0x0A, 0x0C}
	Argon2id = uuid.UUID{0x9E, 0x29, 0x8B, 0x19, 0x56, 0xDB, 0x47, 0x73, 0xB2, 0x3D, 0xFC, 0x3E, 0xC6, 0xF0, 0xA1, 0xE6}
)

// Params is the variant-map view of a KDF's parameters.
type Params struct {
	UUID        uuid.UUID
	Seed        []byte
	Rounds      uint64
	Parallelism uint32
	Memory      uint64
	Iterations  uint64
	Version     uint32
	SecretKey   []byte
	AssocData   []byte
}

// KDF is the capability set every key-derivation function exposes:
// identity, transform, benchmark, and its serializable parameters.
type KDF interface {
	UUID() uuid.UUID
	Transform(input []byte) ([]byte, error)
	Benchmark(targetMS int) (uint64, error)
	Params() Params
}

// Benchmark target bounds, in milliseconds.
const (
	MinBenchmarkMS = 100
	MaxBenchmarkMS = 30000
)

func clampTargetMS(targetMS int) int {
	if targetMS < MinBenchmarkMS {
		return MinBenchmarkMS
	}
	if targetMS > MaxBenchmarkMS {
		return MaxBenchmarkMS
	}
	return targetMS
}

// benchmarkRounds runs timeRounds(n) for increasing round counts,
// doubling until the measured duration exceeds targetMS/8, then
// extrapolates linearly to the full targetMS. Shared by AES-KDF and
// Argon2 so both search the same way.
func benchmarkRounds(targetMS int, timeRounds func(rounds uint64) time.Duration) uint64 {
	targetMS = clampTargetMS(targetMS)
	threshold := time.Duration(targetMS) * time.Millisecond / 8

	var rounds uint64 = 1
	var elapsed time.Duration
	for {
		elapsed = timeRounds(rounds)
		if elapsed >= threshold || rounds > (1<<62) {
			break
		}
		rounds *= 2
	}

	if elapsed <= 0 {
		return rounds
	}
	perRound := float64(elapsed) / float64(rounds)
	target := float64(targetMS) * float64(time.Millisecond)
	estimate := uint64(target / perRound)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// FromVariantMap builds a KDF from its $UUID tag and variant-map
// parameters, the inverse of ToVariantMap.
func FromVariantMap(m *variantmap.Map) (KDF, error) {
	p, err := paramsFromVariantMap(m)
	if err != nil {
		return nil, err
	}
	switch p.UUID {
	case AESKDBX3, AESKDBX4:
		return NewAESKDF(p.Seed, p.Rounds), nil
	case Argon2d:
		return NewArgon2KDF(argon2Variant2d, p), nil
	case Argon2id:
		return NewArgon2KDF(argon2VariantID, p), nil
	default:
		return nil, unsupportedKDF(p.UUID)
	}
}

// ToVariantMap serializes p as a variant map keyed "$UUID", "S", "R",
// "P", "M", "I", "V", "K", "A".
func ToVariantMap(p Params) *variantmap.Map {
	m := variantmap.New()
	m.Set("$UUID", variantmap.ByteArray(p.UUID[:]))
	if len(p.Seed) > 0 {
		m.Set("S", variantmap.ByteArray(p.Seed))
	}
	if p.Rounds > 0 {
		m.Set("R", variantmap.UInt64(p.Rounds))
	}
	if p.Parallelism > 0 {
		m.Set("P", variantmap.UInt32(p.Parallelism))
	}
	if p.Memory > 0 {
		m.Set("M", variantmap.UInt64(p.Memory))
	}
	if p.Iterations > 0 {
		m.Set("I", variantmap.UInt64(p.Iterations))
	}
	if p.Version > 0 {
		m.Set("V", variantmap.UInt32(p.Version))
	}
	if len(p.SecretKey) > 0 {
		m.Set("K", variantmap.ByteArray(p.SecretKey))
	}
	if len(p.AssocData) > 0 {
		m.Set("A", variantmap.ByteArray(p.AssocData))
	}
	return m
}

func paramsFromVariantMap(m *variantmap.Map) (Params, error) {
	var p Params
	uuidVal, ok := m.Get("$UUID")
	if !ok {
		return p, errNoUUID
	}
	raw, err := uuidVal.AsByteArray()
	if err != nil || len(raw) != 16 {
		return p, errNoUUID
	}
	copy(p.UUID[:], raw)

	if v, ok := m.Get("S"); ok {
		p.Seed, _ = v.AsByteArray()
	}
	if v, ok := m.Get("R"); ok {
		p.Rounds, _ = v.AsUInt64()
	}
	if v, ok := m.Get("P"); ok {
		p.Parallelism, _ = v.AsUInt32()
	}
	if v, ok := m.Get("M"); ok {
		p.Memory, _ = v.AsUInt64()
	}
	if v, ok := m.Get("I"); ok {
		p.Iterations, _ = v.AsUInt64()
	}
	if v, ok := m.Get("V"); ok {
		p.Version, _ = v.AsUInt32()
	}
	if v, ok := m.Get("K"); ok {
		p.SecretKey, _ = v.AsByteArray()
	}
	if v, ok := m.Get("A"); ok {
		p.AssocData, _ = v.AsByteArray()
	}
	return p, nil
}

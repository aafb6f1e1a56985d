// Package compositekey builds the raw composite key from its static
// factors (password, key file, challenge-response) and runs it through
// a KDF to produce a database's transformed key.
package compositekey

import (
	"crypto/sha256"

	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/kdf"
)

// Factor is one static contribution to the composite key: its raw
// bytes are concatenated (as SHA-256 hash inputs) in addition order.
type Factor interface {
	RawKey() []byte
}

// ChallengeFactor is a factor whose contribution depends on a
// challenge (the KDF seed), evaluated only once a transform seed is
// available.
type ChallengeFactor interface {
	Challenge(seed []byte) ([]byte, error)
}

// PasswordFactor hashes a UTF-8 password to its SHA-256 digest, the raw
// key contribution of a master password.
type PasswordFactor struct {
	digest [32]byte
}

// NewPasswordFactor hashes password immediately; password is not
// retained.
func NewPasswordFactor(password string) PasswordFactor {
	return PasswordFactor{digest: sha256.Sum256([]byte(password))}
}

func (p PasswordFactor) RawKey() []byte {
	return append([]byte(nil), p.digest[:]...)
}

// KeyFileFactor is the raw key contribution of a key file, which on
// disk may be one of three formats:
// a 32-byte binary blob, 64 hex characters decoding to 32 bytes, or an
// XML document with a base64-encoded <Key><Data> element.
type KeyFileFactor struct {
	key []byte
}

// NewKeyFileFactor wraps an already-resolved 32-byte (or arbitrary
// legacy-length) key file payload; use ParseKeyFile to resolve one of
// the three on-disk encodings first.
func NewKeyFileFactor(key []byte) KeyFileFactor {
	return KeyFileFactor{key: append([]byte(nil), key...)}
}

func (k KeyFileFactor) RawKey() []byte {
	if len(k.key) == 32 {
		return append([]byte(nil), k.key...)
	}
	// Legacy (pre-2.x) arbitrary-length key files are hashed down to
	// 32 bytes, as KeePass's legacy key-file loader does.
	sum := sha256.Sum256(k.key)
	return sum[:]
}

// CompositeKey is the ordered collection of static factors (and
// optional challenge-response factors) that make up a database's
// master key.
type CompositeKey struct {
	factors          []Factor
	challengeFactors []ChallengeFactor
}

// New returns an empty CompositeKey. Factors are added with AddFactor
// and AddChallengeFactor in the order they should be hashed.
func New() *CompositeKey {
	return &CompositeKey{}
}

// AddFactor appends a static factor.
func (c *CompositeKey) AddFactor(f Factor) {
	c.factors = append(c.factors, f)
}

// AddChallengeFactor appends a challenge-response factor.
func (c *CompositeKey) AddChallengeFactor(f ChallengeFactor) {
	c.challengeFactors = append(c.challengeFactors, f)
}

// RawKey hashes the static factors (and, if transformSeed is non-nil,
// the challenge-response factors challenged with it) into the 32-byte
// raw key. A nil transformSeed excludes
// challenge-response, matching the KDBX3/AES-KDF backwards-compatible
// path (see Transform).
func (c *CompositeKey) RawKey(transformSeed []byte) ([]byte, error) {
	h := sha256.New()
	for _, f := range c.factors {
		h.Write(f.RawKey())
	}
	if transformSeed != nil {
		for _, cf := range c.challengeFactors {
			contribution, err := cf.Challenge(transformSeed)
			if err != nil {
				return nil, errs.Wrap(errs.KindKeyUnavailable, err, "compositekey: challenge-response")
			}
			h.Write(contribution)
		}
	}
	return h.Sum(nil), nil
}

// Challenge hashes the challenge-response factors' contributions when
// challenged with seed, returning an empty slice if there are none.
func (c *CompositeKey) Challenge(seed []byte) ([]byte, error) {
	if len(c.challengeFactors) == 0 {
		return nil, nil
	}
	h := sha256.New()
	for _, cf := range c.challengeFactors {
		contribution, err := cf.Challenge(seed)
		if err != nil {
			return nil, errs.Wrap(errs.KindKeyUnavailable, err, "compositekey: challenge")
		}
		h.Write(contribution)
	}
	return h.Sum(nil), nil
}

// Transform derives the transformed key for k. AES-KDF's KDBX3
// transport hashes only the static factors
// (challenge-response, if any, is folded in afterward by the caller
// for backwards compatibility); every other KDF hashes the static
// factors together with the challenge-response contribution, both
// salted by the KDF's own seed.
func (c *CompositeKey) Transform(k kdf.KDF) ([]byte, error) {
	if k.UUID() == kdf.AESKDBX3 {
		raw, err := c.RawKey(nil)
		if err != nil {
			return nil, err
		}
		return k.Transform(raw)
	}

	seed := k.Params().Seed
	if len(seed) == 0 {
		return nil, errs.New(errs.KindMalformed, "compositekey: transform: kdf has no seed")
	}
	raw, err := c.RawKey(seed)
	if err != nil {
		return nil, err
	}
	return k.Transform(raw)
}

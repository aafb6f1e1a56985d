package stream

import (
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20/salsa"

	"github.com/kdbxgo/kdbxvault/errs"
)

// InnerStreamID selects the keystream used to mask protected XML
// values.
type InnerStreamID uint32

const (
	InnerStreamNone     InnerStreamID = 0
	InnerStreamSalsa20  InnerStreamID = 2
	InnerStreamChaCha20 InnerStreamID = 3
)

// innerStreamSalsa20IV is the fixed 8-byte nonce KDBX uses for its
// Salsa20 inner stream.
var innerStreamSalsa20IV = [8]byte{0xE8, 0x30, 0x09, 0x4B, 0x97, 0x20, 0x5D, 0x2A}

// InnerStream is a keystream consumer: callers XOR successive slices
// of plaintext/ciphertext against it in strict document order.
type InnerStream interface {
	// XOR consumes len(dst) keystream bytes, writing src XOR keystream
	// into dst. src and dst may overlap/alias.
	XOR(dst, src []byte)
}

type salsa20Stream struct {
	block   [64]byte
	pos     int
	counter uint64
	key     [32]byte
}

// newSalsa20Stream carries the known interop detail: KDBX's
// Salsa20 inner stream always uses a SHA-256-derived 32-byte key, even
// though the on-disk ProtectedStreamKey/InnerRandomStreamKey field is
// 64 bytes. The hash mixes the whole field, so none of it is discarded.
func newSalsa20Stream(protectedStreamKey []byte) InnerStream {
	s := &salsa20Stream{pos: 64}
	s.key = sha256.Sum256(protectedStreamKey)
	return s
}

func (s *salsa20Stream) XOR(dst, src []byte) {
	var zero [64]byte
	for i := range src {
		if s.pos == 64 {
			var in [16]byte
			copy(in[:8], innerStreamSalsa20IV[:])
			binary.LittleEndian.PutUint64(in[8:], s.counter)
			// One full block through XORKeyStream over zeros yields the
			// raw keystream block for this counter value.
			salsa.XORKeyStream(s.block[:], zero[:], &in, &s.key)
			s.counter++
			s.pos = 0
		}
		dst[i] = src[i] ^ s.block[s.pos]
		s.pos++
	}
}

type chacha20Stream struct {
	s cipher.Stream
}

// newChaCha20Stream derives key/nonce from hash =
// SHA-512(protectedStreamKey): key = hash[0:32], nonce = hash[32:44].
func newChaCha20Stream(protectedStreamKey []byte) (InnerStream, error) {
	hash := sha512.Sum512(protectedStreamKey)
	key := hash[:32]
	nonce := hash[32:44]
	s, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, errs.Wrap(errs.KindMalformed, err, "inner stream: chacha20")
	}
	return &chacha20Stream{s: s}, nil
}

func (c *chacha20Stream) XOR(dst, src []byte) {
	c.s.XORKeyStream(dst, src)
}

// NewInnerStream builds the keystream named by id, seeded from the
// 64-byte ProtectedStreamKey/InnerRandomStreamKey.
func NewInnerStream(id InnerStreamID, protectedStreamKey []byte) (InnerStream, error) {
	switch id {
	case InnerStreamSalsa20:
		return newSalsa20Stream(protectedStreamKey), nil
	case InnerStreamChaCha20:
		return newChaCha20Stream(protectedStreamKey)
	case InnerStreamNone:
		return nil, errs.New(errs.KindUnsupportedVersion, "inner stream: InnerStreamNone cannot mask values")
	default:
		return nil, errs.New(errs.KindUnsupportedVersion, "inner stream: unknown id %d", id)
	}
}

// Package cipher implements the outer-container payload ciphers a KDBX
// database can select: AES-256-CBC, Twofish-CBC and ChaCha20. UUID values are grounded in the well-known KeePass cipher IDs.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/twofish"

	"github.com/kdbxgo/kdbxvault/errs"
)

// Well-known cipher UUID tags.
var (
	AES256   = uuid.UUID{0x31, 0xC1, 0xF2, 0xE6, 0xBF, 0x71, 0x43, 0x50, 0xBE, 0x58, 0x05, 0x21, 0x6A, 0xFC, 0x5A, 0xFF}
	Twofish  = uuid.UUID{0xAD, 0x68, 0xF2, 0x9F, 0x57, 0x6F, 0x4B, 0xB9, 0xA3, 0x6A, 0xD4, 0x7A, 0xF9, 0x65, 0x34, 0x6C}
	ChaCha20 = uuid.UUID{0xD6, 0x03, 0x8A, 0x2B, 0x8B, 0x6F, 0x4C, 0xB5, 0xA5, 0x24, 0x33, 0x9A, 0x31, 0xDB, 0xB5, 0x9A}
)

// IVSize returns the IV (or nonce) length the named cipher requires.
func IVSize(id uuid.UUID) (int, error) {
	switch id {
	case AES256, Twofish:
		return 16, nil
	case ChaCha20:
		return 12, nil
	default:
		return 0, unsupportedCipher(id)
	}
}

// KeySize returns the key length (always 32, AES-256/Twofish-256/
// ChaCha20's key size) the named cipher requires.
func KeySize(id uuid.UUID) (int, error) {
	switch id {
	case AES256, Twofish, ChaCha20:
		return 32, nil
	default:
		return 0, unsupportedCipher(id)
	}
}

// NewStream returns a keystream cipher.Stream for id. It is used
// directly for ChaCha20; AES-256 and Twofish are normally run in CBC
// mode via NewCBCEncrypter/NewCBCDecrypter instead, but CTR mode is
// exposed here for callers (e.g. the inner random stream) that need a
// pure keystream out of a block cipher.
func NewStream(id uuid.UUID, key, iv []byte) (cipher.Stream, error) {
	switch id {
	case AES256:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, errs.Wrap(errs.KindMalformed, err, "cipher: aes")
		}
		return cipher.NewCTR(block, iv), nil
	case Twofish:
		block, err := twofish.NewCipher(key)
		if err != nil {
			return nil, errs.Wrap(errs.KindMalformed, err, "cipher: twofish")
		}
		return cipher.NewCTR(block, iv), nil
	case ChaCha20:
		s, err := chacha20.NewUnauthenticatedCipher(key, iv)
		if err != nil {
			return nil, errs.Wrap(errs.KindMalformed, err, "cipher: chacha20")
		}
		return s, nil
	default:
		return nil, unsupportedCipher(id)
	}
}

// NewCBCEncrypter and NewCBCDecrypter build block-cipher CBC modes for
// AES-256 and Twofish, the two block ciphers the container supports.
// ChaCha20 is a stream cipher and has no CBC mode; callers must branch
// on the cipher ID before reaching for these.

func NewCBCEncrypter(id uuid.UUID, key, iv []byte) (cipher.BlockMode, error) {
	block, err := newBlock(id, key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCBCEncrypter(block, iv), nil
}

func NewCBCDecrypter(id uuid.UUID, key, iv []byte) (cipher.BlockMode, error) {
	block, err := newBlock(id, key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCBCDecrypter(block, iv), nil
}

// BlockSize returns the cipher's block size (16 for both AES and
// Twofish), used for PKCS#7 padding.
func BlockSize(id uuid.UUID) (int, error) {
	switch id {
	case AES256:
		return aes.BlockSize, nil
	case Twofish:
		return twofish.BlockSize, nil
	default:
		return 0, unsupportedCipher(id)
	}
}

func newBlock(id uuid.UUID, key []byte) (cipher.Block, error) {
	switch id {
	case AES256:
		b, err := aes.NewCipher(key)
		if err != nil {
			return nil, errs.Wrap(errs.KindMalformed, err, "cipher: aes")
		}
		return b, nil
	case Twofish:
		b, err := twofish.NewCipher(key)
		if err != nil {
			return nil, errs.Wrap(errs.KindMalformed, err, "cipher: twofish")
		}
		return b, nil
	default:
		return nil, errs.New(errs.KindUnsupportedVersion, "cipher: %s has no CBC mode", id)
	}
}

// PadPKCS7 appends PKCS#7 padding to buf so its length is a multiple of
// blockSize.
func PadPKCS7(buf []byte, blockSize int) []byte {
	padLen := blockSize - len(buf)%blockSize
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = byte(padLen)
	}
	return append(buf, pad...)
}

// UnpadPKCS7 strips and validates PKCS#7 padding.
func UnpadPKCS7(buf []byte, blockSize int) ([]byte, error) {
	if len(buf) == 0 || len(buf)%blockSize != 0 {
		return nil, errs.New(errs.KindMalformed, "cipher: padded buffer length %d is not a multiple of block size %d", len(buf), blockSize)
	}
	padLen := int(buf[len(buf)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(buf) {
		return nil, errs.New(errs.KindMalformed, "cipher: invalid PKCS#7 padding length %d", padLen)
	}
	for _, b := range buf[len(buf)-padLen:] {
		if int(b) != padLen {
			return nil, errs.New(errs.KindMalformed, "cipher: invalid PKCS#7 padding byte")
		}
	}
	return buf[:len(buf)-padLen], nil
}

func unsupportedCipher(id uuid.UUID) error {
	return errs.New(errs.KindUnsupportedVersion, "cipher: unsupported cipher %s", id)
}

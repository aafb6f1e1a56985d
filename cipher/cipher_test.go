package cipher

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
)

func TestCBCRoundTrip(t *testing.T) {
	for _, id := range []uuid.UUID{AES256, Twofish} {
		keySize, _ := KeySize(id)
		ivSize, _ := IVSize(id)
		blockSize, _ := BlockSize(id)

		key := make([]byte, keySize)
		iv := make([]byte, ivSize)
		rand.Read(key)
		rand.Read(iv)

		plaintext := PadPKCS7([]byte("hello world, this is a secret"), blockSize)

		enc, err := NewCBCEncrypter(id, key, iv)
		if err != nil {
			t.Fatalf("%s: encrypter: %v", id, err)
		}
		ciphertext := make([]byte, len(plaintext))
		enc.CryptBlocks(ciphertext, plaintext)

		dec, err := NewCBCDecrypter(id, key, iv)
		if err != nil {
			t.Fatalf("%s: decrypter: %v", id, err)
		}
		decrypted := make([]byte, len(ciphertext))
		dec.CryptBlocks(decrypted, ciphertext)

		unpadded, err := UnpadPKCS7(decrypted, blockSize)
		if err != nil {
			t.Fatalf("%s: unpad: %v", id, err)
		}
		if string(unpadded) != "hello world, this is a secret" {
			t.Fatalf("%s: round trip mismatch: got %q", id, unpadded)
		}
	}
}

func TestChaCha20StreamRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 12)
	rand.Read(key)
	rand.Read(iv)

	plaintext := []byte("stream cipher payload, no padding needed")

	enc, err := NewStream(ChaCha20, key, iv)
	if err != nil {
		t.Fatalf("encrypt stream: %v", err)
	}
	ciphertext := make([]byte, len(plaintext))
	enc.XORKeyStream(ciphertext, plaintext)

	dec, err := NewStream(ChaCha20, key, iv)
	if err != nil {
		t.Fatalf("decrypt stream: %v", err)
	}
	decrypted := make([]byte, len(ciphertext))
	dec.XORKeyStream(decrypted, ciphertext)

	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("chacha20 round trip mismatch")
	}
}

func TestUnpadPKCS7RejectsCorruption(t *testing.T) {
	buf := PadPKCS7([]byte("0123456789012345"), 16)
	buf[len(buf)-1] = 0xFF
	if _, err := UnpadPKCS7(buf, 16); err == nil {
		t.Fatal("expected error for corrupted padding")
	}
}

func TestUnsupportedCipher(t *testing.T) {
	var bogus uuid.UUID
	if _, err := KeySize(bogus); err == nil {
		t.Fatal("expected error for unknown cipher id")
	}
}

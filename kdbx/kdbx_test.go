package kdbx

import (
	"bytes"
	"testing"

	"github.com/kdbxgo/kdbxvault/cipher"
	"github.com/kdbxgo/kdbxvault/compositekey"
	"github.com/kdbxgo/kdbxvault/kdf"
	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/stream"
)

func newTestCompositeKey(password string) *compositekey.CompositeKey {
	ck := compositekey.New()
	ck.AddFactor(compositekey.NewPasswordFactor(password))
	return ck
}

func TestSaveLoadRoundTripV4(t *testing.T) {
	ck := newTestCompositeKey("correct horse battery staple")
	k := kdf.NewAESKDF(bytes.Repeat([]byte{0x11}, 32), 4)

	xmlPayload := []byte("<KeePassFile><Meta/><Root/></KeePassFile>")

	var buf bytes.Buffer
	err := Save(&buf, SaveParams{
		Version:       model.FormatKDBX4,
		CipherID:      cipher.AES256,
		Compression:   model.CompressionGzip,
		KDF:           k,
		InnerStreamID: stream.InnerStreamChaCha20,
		CompositeKey:  ck,
	}, xmlPayload)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	c, err := Load(bytes.NewReader(buf.Bytes()), ck, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(c.XML, xmlPayload) {
		t.Fatalf("xml payload mismatch: got %q want %q", c.XML, xmlPayload)
	}
	if c.InnerStreamID() != stream.InnerStreamChaCha20 {
		t.Fatalf("inner stream id mismatch: got %v", c.InnerStreamID())
	}
}

func TestSaveLoadRoundTripV3(t *testing.T) {
	ck := newTestCompositeKey("correct horse battery staple")
	k := kdf.NewAESKDF3(bytes.Repeat([]byte{0x22}, 32), 6)

	xmlPayload := []byte("<KeePassFile><Meta/><Root/></KeePassFile>")

	var buf bytes.Buffer
	err := Save(&buf, SaveParams{
		Version:       model.FormatKDBX3,
		CipherID:      cipher.AES256,
		Compression:   model.CompressionNone,
		KDF:           k,
		InnerStreamID: stream.InnerStreamSalsa20,
		CompositeKey:  ck,
	}, xmlPayload)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	c, err := Load(bytes.NewReader(buf.Bytes()), ck, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(c.XML, xmlPayload) {
		t.Fatalf("xml payload mismatch: got %q want %q", c.XML, xmlPayload)
	}
	if c.InnerStreamID() != stream.InnerStreamSalsa20 {
		t.Fatalf("inner stream id mismatch: got %v", c.InnerStreamID())
	}
}

func TestLoadWrongPasswordFailsV4(t *testing.T) {
	ck := newTestCompositeKey("right password")
	k := kdf.NewAESKDF(bytes.Repeat([]byte{0x33}, 32), 4)

	var buf bytes.Buffer
	err := Save(&buf, SaveParams{
		Version:       model.FormatKDBX4,
		CipherID:      cipher.AES256,
		Compression:   model.CompressionNone,
		KDF:           k,
		InnerStreamID: stream.InnerStreamChaCha20,
		CompositeKey:  ck,
	}, []byte("<KeePassFile/>"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	wrongCK := newTestCompositeKey("wrong password")
	_, err = Load(bytes.NewReader(buf.Bytes()), wrongCK, nil)
	if err == nil {
		t.Fatal("expected Load to fail with wrong password")
	}
}

func TestLoadWrongPasswordFailsV3(t *testing.T) {
	ck := newTestCompositeKey("right password")
	k := kdf.NewAESKDF3(bytes.Repeat([]byte{0x44}, 32), 4)

	var buf bytes.Buffer
	err := Save(&buf, SaveParams{
		Version:       model.FormatKDBX3,
		CipherID:      cipher.AES256,
		Compression:   model.CompressionNone,
		KDF:           k,
		InnerStreamID: stream.InnerStreamSalsa20,
		CompositeKey:  ck,
	}, []byte("<KeePassFile/>"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	wrongCK := newTestCompositeKey("wrong password")
	_, err = Load(bytes.NewReader(buf.Bytes()), wrongCK, nil)
	if err == nil {
		t.Fatal("expected Load to fail with wrong password")
	}
}

func TestLoadTamperedHeaderHmacFailsV4(t *testing.T) {
	ck := newTestCompositeKey("correct horse battery staple")
	k := kdf.NewAESKDF(bytes.Repeat([]byte{0x55}, 32), 4)

	var buf bytes.Buffer
	err := Save(&buf, SaveParams{
		Version:       model.FormatKDBX4,
		CipherID:      cipher.AES256,
		Compression:   model.CompressionNone,
		KDF:           k,
		InnerStreamID: stream.InnerStreamChaCha20,
		CompositeKey:  ck,
	}, []byte("<KeePassFile/>"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	tampered := append([]byte(nil), buf.Bytes()...)
	// Flip a byte inside the raw header, ahead of the sha256/hmac
	// trailer; Load checks the header SHA-256 first and must reject it.
	tampered[20] ^= 0xFF

	_, err = Load(bytes.NewReader(tampered), ck, nil)
	if err == nil {
		t.Fatal("expected Load to detect tampered header")
	}
}

func TestSaveLoadRoundTripTwofishCipher(t *testing.T) {
	ck := newTestCompositeKey("another passphrase")
	k := kdf.NewAESKDF(bytes.Repeat([]byte{0x66}, 32), 4)

	var buf bytes.Buffer
	err := Save(&buf, SaveParams{
		Version:       model.FormatKDBX4,
		CipherID:      cipher.Twofish,
		Compression:   model.CompressionGzip,
		KDF:           k,
		InnerStreamID: stream.InnerStreamChaCha20,
		CompositeKey:  ck,
	}, []byte("<KeePassFile><Root/></KeePassFile>"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	c, err := Load(bytes.NewReader(buf.Bytes()), ck, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(c.XML) != "<KeePassFile><Root/></KeePassFile>" {
		t.Fatalf("xml payload mismatch: got %q", c.XML)
	}
}

package compositekey

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/kdbxgo/kdbxvault/kdf"
)

type fixedChallenge struct{ response []byte }

func (f fixedChallenge) Challenge(seed []byte) ([]byte, error) {
	return f.response, nil
}

func TestRawKeyOrderMatters(t *testing.T) {
	a := New()
	a.AddFactor(NewPasswordFactor("alpha"))
	a.AddFactor(NewKeyFileFactor(bytes.Repeat([]byte{1}, 32)))

	b := New()
	b.AddFactor(NewKeyFileFactor(bytes.Repeat([]byte{1}, 32)))
	b.AddFactor(NewPasswordFactor("alpha"))

	rawA, err := a.RawKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	rawB, err := b.RawKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(rawA, rawB) {
		t.Fatal("raw key must depend on factor order")
	}
}

func TestPasswordFactorDigest(t *testing.T) {
	want := sha256.Sum256([]byte("hunter2"))
	f := NewPasswordFactor("hunter2")
	if !bytes.Equal(f.RawKey(), want[:]) {
		t.Fatal("password factor must be the SHA-256 of the password")
	}
}

func TestChallengeResponseExcludedWithoutSeed(t *testing.T) {
	c := New()
	c.AddFactor(NewPasswordFactor("pw"))
	c.AddChallengeFactor(fixedChallenge{response: []byte("hmac-response")})

	withoutSeed, err := c.RawKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	withSeed, err := c.RawKey([]byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(withoutSeed, withSeed) {
		t.Fatal("challenge-response contribution must change the raw key when a seed is given")
	}
}

func TestTransformAESKDBX3IgnoresChallengeResponse(t *testing.T) {
	c := New()
	c.AddFactor(NewPasswordFactor("pw"))
	c.AddChallengeFactor(fixedChallenge{response: []byte("ignored")})

	k := kdf.NewAESKDF3(bytes.Repeat([]byte{9}, 32), 1)
	out1, err := c.Transform(k)
	if err != nil {
		t.Fatal(err)
	}

	c2 := New()
	c2.AddFactor(NewPasswordFactor("pw"))
	out2, err := c2.Transform(k)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatal("AES-KDF KDBX3 transport must not include challenge-response in the transformed key")
	}
}

func TestParseKeyFileFormats(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 32)
	f, err := ParseKeyFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.RawKey(), raw) {
		t.Fatal("32-byte binary key file must be used as-is")
	}

	hexKey := []byte("aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"[:64])
	f2, err := ParseKeyFile(hexKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(f2.RawKey()) != 32 {
		t.Fatalf("hex key file must decode to 32 bytes, got %d", len(f2.RawKey()))
	}

	xmlDoc := []byte(`<?xml version="1.0"?><KeyFile><Key><Data>` +
		"QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVoxMjM0NTY=" +
		`</Data></Key></KeyFile>`)
	f3, err := ParseKeyFile(xmlDoc)
	if err != nil {
		t.Fatal(err)
	}
	if len(f3.RawKey()) == 0 {
		t.Fatal("XML key file must decode non-empty key data")
	}
}

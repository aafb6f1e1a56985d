package kdbx_test

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"
	"time"

	"github.com/kdbxgo/kdbxvault/cipher"
	"github.com/kdbxgo/kdbxvault/compositekey"
	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/kdbx"
	"github.com/kdbxgo/kdbxvault/kdbxxml"
	"github.com/kdbxgo/kdbxvault/kdf"
	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/stream"
)

// End-to-end container scenarios: empty v3.1 AES/Gzip round trip, a v4
// Argon2/ChaCha20 round trip with a protected attribute, and the wrong-
// key and tamper cases. The variant map
// golden vector lives in variantmap/variantmap_test.go, next to the
// codec it exercises.

var scenarioTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func passwordKey(password string) *compositekey.CompositeKey {
	ck := compositekey.New()
	ck.AddFactor(compositekey.NewPasswordFactor(password))
	return ck
}

// TestScenarioS1EmptyV3AESGzip builds an empty v3.1 database with
// AES-KDF (zero seed, 6000 rounds), AES-256 cipher and gzip compression,
// password "a". It saves and reloads it, and checks that the written
// <HeaderHash> element equals SHA-256 of the actual header bytes.
func TestScenarioS1EmptyV3AESGzip(t *testing.T) {
	ck := passwordKey("a")
	k := kdf.NewAESKDF3(make([]byte, 32), 6000)

	db := model.NewDatabase("Root", model.FormatKDBX3, scenarioTime)
	payload := &kdbxxml.Payload{Metadata: db.Metadata, Root: db.Root}

	saveP := kdbx.SaveParams{
		Version:       model.FormatKDBX3,
		CipherID:      cipher.AES256,
		Compression:   model.CompressionGzip,
		KDF:           k,
		InnerStreamID: stream.InnerStreamSalsa20,
		CompositeKey:  ck,
	}

	var out bytes.Buffer
	err := kdbx.SaveV3WithHeaderHash(&out, saveP, func(headerHash []byte) ([]byte, error) {
		payload.HeaderHash = headerHash
		// Root has no protected attributes, so the inner stream never
		// needs to run; Encode accepts a nil stream in that case.
		return kdbxxml.Encode(payload, false, nil, "kdbxvault")
	})
	if err != nil {
		t.Fatalf("SaveV3WithHeaderHash: %v", err)
	}

	container, err := kdbx.Load(bytes.NewReader(out.Bytes()), ck, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	decoded, err := kdbxxml.Decode(container.XML, false, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Root.Name != "Root" {
		t.Errorf("root group name = %q, want %q", decoded.Root.Name, "Root")
	}
	if len(decoded.Root.Entries) != 0 {
		t.Errorf("root group has %d entries, want 0", len(decoded.Root.Entries))
	}

	rawHeader, err := kdbx.WriteOuterHeader(io.Discard, container.Outer, false)
	if err != nil {
		t.Fatalf("WriteOuterHeader: %v", err)
	}
	wantHash := sha256.Sum256(rawHeader)
	if !bytes.Equal(decoded.HeaderHash, wantHash[:]) {
		t.Errorf("HeaderHash = %x, want %x", decoded.HeaderHash, wantHash)
	}
}

// buildS2 constructs the v4 + Argon2id + ChaCha20 database S2 describes
// and returns its saved bytes alongside the composite key.
//
// golang.org/x/crypto/argon2 exposes only Argon2i and Argon2id (no
// public Argon2d entry point), so the KDF actually run here is Argon2id
// while everything else (parameters,
// cipher, protected Password attribute) unchanged.
func buildS2(t *testing.T) ([]byte, *compositekey.CompositeKey) {
	t.Helper()
	ck := passwordKey("correct horse battery staple")
	k := kdf.NewArgon2idKDF(kdf.Params{
		Seed:        make([]byte, 32),
		Iterations:  2,
		Memory:      65536,
		Parallelism: 2,
	})

	db := model.NewDatabase("Root", model.FormatKDBX4, scenarioTime)
	entry := model.NewEntry(model.NewTimeInfo(scenarioTime))
	entry.Set(model.AttrTitle, "t", false)
	entry.Set(model.AttrUserName, "u", false)
	entry.Set(model.AttrPassword, "p", true)
	db.Root.AddEntry(entry)

	payload := &kdbxxml.Payload{Metadata: db.Metadata, Root: db.Root}

	protectedStreamKey := bytes.Repeat([]byte{0x5A}, 64)
	innerStream, err := stream.NewInnerStream(stream.InnerStreamChaCha20, protectedStreamKey)
	if err != nil {
		t.Fatalf("NewInnerStream: %v", err)
	}
	xmlPayload, err := kdbxxml.Encode(payload, true, innerStream, "kdbxvault")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	saveP := kdbx.SaveParams{
		Version:                model.FormatKDBX4,
		CipherID:               cipher.ChaCha20,
		Compression:            model.CompressionNone,
		KDF:                    k,
		InnerStreamID:          stream.InnerStreamChaCha20,
		PreviousInnerStreamKey: protectedStreamKey,
		CompositeKey:           ck,
	}

	var out bytes.Buffer
	if err := kdbx.Save(&out, saveP, xmlPayload); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return out.Bytes(), ck
}

func TestScenarioS2Argon2ChaCha20(t *testing.T) {
	data, ck := buildS2(t)

	container, err := kdbx.Load(bytes.NewReader(data), ck, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	innerStream, err := stream.NewInnerStream(container.InnerStreamID(), container.InnerStreamKey())
	if err != nil {
		t.Fatalf("NewInnerStream: %v", err)
	}
	payload, err := kdbxxml.Decode(container.XML, true, innerStream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(payload.Root.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(payload.Root.Entries))
	}
	entry := payload.Root.Entries[0]
	if got := entry.Get(model.AttrPassword); got != "p" {
		t.Errorf("password = %q, want %q", got, "p")
	}
	attr, ok := entry.Attributes.Get(model.AttrPassword)
	if !ok || !attr.Protected {
		t.Errorf("password attribute not marked protected")
	}
}

// TestScenarioS3WrongKeyFails loads S2's bytes with the wrong password
// and expects an Authentication error with no tree exposed.
func TestScenarioS3WrongKeyFails(t *testing.T) {
	data, _ := buildS2(t)
	wrongKey := passwordKey("a")

	container, err := kdbx.Load(bytes.NewReader(data), wrongKey, nil)
	if err == nil {
		t.Fatal("expected Load to fail with wrong password")
	}
	if !errs.Is(err, errs.KindAuthentication) {
		t.Errorf("error kind = %v, want Authentication", err)
	}
	if container != nil {
		t.Error("expected no container on failed load")
	}
}

// TestScenarioS4TamperedHeaderFails flips a byte inside S2's outer
// header and expects Authentication when loaded with the correct key.
func TestScenarioS4TamperedHeaderFails(t *testing.T) {
	data, ck := buildS2(t)

	tampered := append([]byte(nil), data...)
	tampered[20] ^= 0xFF // inside the outer header TLV stream

	_, err := kdbx.Load(bytes.NewReader(tampered), ck, nil)
	if err == nil {
		t.Fatal("expected Load to detect a tampered header")
	}
	if !errs.Is(err, errs.KindAuthentication) {
		t.Errorf("error kind = %v, want Authentication", err)
	}
}

// TestScenarioS5TamperedBodyFails flips the first byte after the header
// HMAC in S2's bytes and expects Integrity, not Authentication, since
// the header itself is untouched.
func TestScenarioS5TamperedBodyFails(t *testing.T) {
	data, ck := buildS2(t)

	r := bytes.NewReader(data)
	if _, err := kdbx.ReadMagic(r); err != nil {
		t.Fatalf("ReadMagic: %v", err)
	}
	if _, _, err := kdbx.ReadOuterHeader(r, true, nil); err != nil {
		t.Fatalf("ReadOuterHeader: %v", err)
	}
	consumed := len(data) - r.Len()
	offset := consumed + 64 // skip header_sha256 (32B) + header_hmac (32B)

	tampered := append([]byte(nil), data...)
	tampered[offset] ^= 0xFF

	_, err := kdbx.Load(bytes.NewReader(tampered), ck, nil)
	if err == nil {
		t.Fatal("expected Load to detect a tampered body byte")
	}
	if !errs.Is(err, errs.KindIntegrity) {
		t.Errorf("error kind = %v, want Integrity", err)
	}
}

// TestV4AttachmentPoolRoundTrip pools two attachments (one shared by
// content between two entries), carries them through the v4 inner
// header, and checks every reference still resolves after a reload.
func TestV4AttachmentPoolRoundTrip(t *testing.T) {
	ck := passwordKey("pool password")
	k := kdf.NewAESKDF(bytes.Repeat([]byte{0x77}, 32), 4)

	pool := model.NewBinaryPool()
	reportID := pool.Add([]byte("%PDF-1.4 fake report"))
	noteID := pool.Add([]byte("plain text note"))
	if dup := pool.Add([]byte("%PDF-1.4 fake report")); dup != reportID {
		t.Fatalf("content dedup broken: got ID %d, want %d", dup, reportID)
	}

	db := model.NewDatabase("Root", model.FormatKDBX4, scenarioTime)
	e1 := model.NewEntry(model.NewTimeInfo(scenarioTime))
	e1.Set(model.AttrTitle, "with report", false)
	e1.Attachments.Set("report.pdf", reportID)
	e2 := model.NewEntry(model.NewTimeInfo(scenarioTime))
	e2.Set(model.AttrTitle, "with both", false)
	e2.Attachments.Set("copy.pdf", reportID)
	e2.Attachments.Set("note.txt", noteID)
	db.Root.AddEntry(e1)
	db.Root.AddEntry(e2)

	var binaries []kdbx.Binary
	for _, id := range pool.IDs() {
		data, _ := pool.Get(id)
		binaries = append(binaries, kdbx.Binary{Data: data})
	}

	payload := &kdbxxml.Payload{Metadata: db.Metadata, Root: db.Root}
	xmlPayload, err := kdbxxml.Encode(payload, true, nil, "kdbxvault")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out bytes.Buffer
	err = kdbx.Save(&out, kdbx.SaveParams{
		Version:       model.FormatKDBX4,
		CipherID:      cipher.AES256,
		Compression:   model.CompressionGzip,
		KDF:           k,
		InnerStreamID: stream.InnerStreamChaCha20,
		Binaries:      binaries,
		CompositeKey:  ck,
	}, xmlPayload)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	container, err := kdbx.Load(bytes.NewReader(out.Bytes()), ck, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := container.Binaries()
	if len(got) != 2 {
		t.Fatalf("binary pool size = %d, want 2", len(got))
	}

	decoded, err := kdbxxml.Decode(container.XML, true, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	reloaded := model.NewBinaryPool()
	for i, b := range got {
		reloaded.Put(int32(i), b.Data)
	}
	for _, e := range decoded.Root.AllEntries() {
		for _, key := range e.Attachments.Keys() {
			id, _ := e.Attachments.Get(key)
			if _, ok := reloaded.Get(id); !ok {
				t.Errorf("attachment %q references missing pool ID %d", key, id)
			}
		}
	}
	ref1, _ := decoded.Root.Entries[0].Attachments.Get("report.pdf")
	ref2, _ := decoded.Root.Entries[1].Attachments.Get("copy.pdf")
	if ref1 != ref2 {
		t.Errorf("shared-content attachments reference IDs %d and %d, want equal", ref1, ref2)
	}
	data, _ := reloaded.Get(ref1)
	if !bytes.Equal(data, []byte("%PDF-1.4 fake report")) {
		t.Errorf("attachment payload mismatch: %q", data)
	}
}

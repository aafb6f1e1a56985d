package kdbxxml

import (
	"testing"
	"time"

	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/stream"
)

func buildTestPayload(now time.Time) *Payload {
	root := model.NewGroup("Root", model.NewTimeInfo(now))

	e1 := model.NewEntry(model.NewTimeInfo(now))
	e1.Set(model.AttrTitle, "Example", false)
	e1.Set(model.AttrUserName, "alice", false)
	e1.Set(model.AttrPassword, "hunter2", true)
	e1.Set(model.AttrURL, "https://example.com", false)

	snapshot := e1.Clone()
	snapshot.Set(model.AttrPassword, "oldpassword", true)
	e1.PushHistory(snapshot, -1)

	e2 := model.NewEntry(model.NewTimeInfo(now))
	e2.Set(model.AttrTitle, "Second", false)
	e2.Set(model.AttrPassword, "correcthorse", true)

	root.AddEntry(e1)
	root.AddEntry(e2)

	sub := model.NewGroup("Sub", model.NewTimeInfo(now))
	e3 := model.NewEntry(model.NewTimeInfo(now))
	e3.Set(model.AttrPassword, "nested-secret", true)
	sub.AddEntry(e3)
	root.AddGroup(sub)

	return &Payload{
		Metadata: model.NewMetadata("Test DB", now),
		Root:     root,
	}
}

func TestProtectedValueRoundTripV4(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := buildTestPayload(now)

	key := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")
	encodeStream, err := stream.NewInnerStream(stream.InnerStreamChaCha20, key)
	if err != nil {
		t.Fatalf("NewInnerStream: %v", err)
	}
	data, err := Encode(payload, true, encodeStream, "kdbxvault-test")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decodeStream, err := stream.NewInnerStream(stream.InnerStreamChaCha20, key)
	if err != nil {
		t.Fatalf("NewInnerStream: %v", err)
	}
	got, err := Decode(data, true, decodeStream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	entries := got.Root.AllEntries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Get(model.AttrPassword) != "hunter2" {
		t.Fatalf("entries[0] password = %q, want hunter2", entries[0].Get(model.AttrPassword))
	}
	if entries[1].Get(model.AttrPassword) != "correcthorse" {
		t.Fatalf("entries[1] password = %q, want correcthorse", entries[1].Get(model.AttrPassword))
	}
	if entries[2].Get(model.AttrPassword) != "nested-secret" {
		t.Fatalf("entries[2] password = %q, want nested-secret", entries[2].Get(model.AttrPassword))
	}
	if len(entries[0].History) != 1 || entries[0].History[0].Get(model.AttrPassword) != "oldpassword" {
		t.Fatalf("entries[0] history password mismatch")
	}
	if entries[0].Get(model.AttrTitle) != "Example" {
		t.Fatalf("plaintext title corrupted: %q", entries[0].Get(model.AttrTitle))
	}
}

func TestProtectedValueRoundTripSalsa20V3(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	payload := buildTestPayload(now)

	key := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")
	encodeStream, err := stream.NewInnerStream(stream.InnerStreamSalsa20, key)
	if err != nil {
		t.Fatalf("NewInnerStream: %v", err)
	}
	data, err := Encode(payload, false, encodeStream, "kdbxvault-test")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decodeStream, err := stream.NewInnerStream(stream.InnerStreamSalsa20, key)
	if err != nil {
		t.Fatalf("NewInnerStream: %v", err)
	}
	got, err := Decode(data, false, decodeStream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	entries := got.Root.AllEntries()
	if entries[0].Get(model.AttrPassword) != "hunter2" {
		t.Fatalf("wrong decrypted password: %q", entries[0].Get(model.AttrPassword))
	}
	if got.Metadata.Name != "Test DB" {
		t.Fatalf("metadata name mismatch: %q", got.Metadata.Name)
	}
}

func TestProtectedValueOrderMatters(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	payload := buildTestPayload(now)

	key := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")
	encodeStream, _ := stream.NewInnerStream(stream.InnerStreamChaCha20, key)
	data, err := Encode(payload, true, encodeStream, "kdbxvault-test")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Decoding with a stream that has consumed a different number of
	// bytes beforehand (simulating a reader that visited attributes out
	// of order) must not silently produce the right plaintext.
	decodeStream, _ := stream.NewInnerStream(stream.InnerStreamChaCha20, key)
	junk := make([]byte, 16)
	decodeStream.XOR(junk, junk)

	got, err := Decode(data, true, decodeStream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Root.AllEntries()[0].Get(model.AttrPassword) == "hunter2" {
		t.Fatal("misaligned keystream unexpectedly produced the correct plaintext")
	}
}

func TestHeaderHashRoundTripV3(t *testing.T) {
	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	payload := buildTestPayload(now)
	payload.HeaderHash = []byte("0123456789abcdef0123456789abcdef")

	data, err := Encode(payload, false, nil, "kdbxvault-test")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, false, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got.HeaderHash) != string(payload.HeaderHash) {
		t.Fatalf("header hash mismatch: got %x want %x", got.HeaderHash, payload.HeaderHash)
	}
}

func TestCustomIconsRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	payload := buildTestPayload(now)
	iconID := model.NewID()
	payload.Metadata.CustomIcons = []model.CustomIcon{
		{UUID: iconID, Name: "favicon", LastModified: now, Data: []byte{0x89, 'P', 'N', 'G'}},
	}
	payload.Root.CustomIconUUID = iconID

	data, err := Encode(payload, true, nil, "kdbxvault-test")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, true, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got.Metadata.CustomIcons) != 1 {
		t.Fatalf("custom icons = %d, want 1", len(got.Metadata.CustomIcons))
	}
	icon := got.Metadata.CustomIcons[0]
	if icon.UUID != iconID || icon.Name != "favicon" {
		t.Errorf("icon identity mismatch: %+v", icon)
	}
	if string(icon.Data) != string([]byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("icon data mismatch: %x", icon.Data)
	}
	if !icon.LastModified.Equal(now) {
		t.Errorf("icon last modified = %v, want %v", icon.LastModified, now)
	}
	if got.Root.CustomIconUUID != iconID {
		t.Errorf("group custom icon reference lost")
	}
}

package stream

import (
	"bytes"
	"io"
	"testing"
)

func TestHashedBlockRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewHashedBlockWriter(&buf)
	payload := bytes.Repeat([]byte("hashed-block-data"), 5000)
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := NewHashedBlockReader(&buf)
	got, err := readAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("hashed block stream round trip mismatch")
	}
}

func TestHashedBlockDetectsTamper(t *testing.T) {
	var buf bytes.Buffer
	w := NewHashedBlockWriter(&buf)
	w.Write([]byte("tamper me"))
	w.Close()

	corrupted := buf.Bytes()
	corrupted[10] ^= 0xFF

	r := NewHashedBlockReader(bytes.NewReader(corrupted))
	if _, err := readAll(r); err == nil {
		t.Fatal("expected integrity error for tampered hashed block stream")
	}
}

func TestHmacBlockRoundTrip(t *testing.T) {
	keys := NewHmacBlockKeys(bytes.Repeat([]byte{0x01}, 32), bytes.Repeat([]byte{0x02}, 32))

	var buf bytes.Buffer
	w := NewHmacBlockWriter(&buf, keys)
	payload := bytes.Repeat([]byte("hmac-block-data"), 5000)
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := NewHmacBlockReader(&buf, NewHmacBlockKeys(bytes.Repeat([]byte{0x01}, 32), bytes.Repeat([]byte{0x02}, 32)))
	got, err := readAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("hmac block stream round trip mismatch")
	}
}

func TestHmacBlockWrongKeyFails(t *testing.T) {
	keys := NewHmacBlockKeys(bytes.Repeat([]byte{0x01}, 32), bytes.Repeat([]byte{0x02}, 32))
	var buf bytes.Buffer
	w := NewHmacBlockWriter(&buf, keys)
	w.Write([]byte("some content"))
	w.Close()

	wrongKeys := NewHmacBlockKeys(bytes.Repeat([]byte{0x01}, 32), bytes.Repeat([]byte{0x99}, 32))
	r := NewHmacBlockReader(&buf, wrongKeys)
	if _, err := readAll(r); err == nil {
		t.Fatal("expected authentication error for wrong-key hmac block stream")
	}
}

func TestHeaderHmacTamperDetected(t *testing.T) {
	keys := NewHmacBlockKeys(bytes.Repeat([]byte{0x01}, 32), bytes.Repeat([]byte{0x02}, 32))
	header := []byte("outer header bytes go here")
	mac := keys.HmacHeader(header)

	header[3] ^= 0xFF
	recomputed := keys.HmacHeader(header)
	if bytes.Equal(mac, recomputed) {
		t.Fatal("flipping a header byte must change its HMAC")
	}
}

func readAll(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			if err == io.EOF {
				return out.Bytes(), nil
			}
			return nil, err
		}
	}
}

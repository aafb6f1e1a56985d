// Package stream implements the block-framed plaintext envelopes KDBX
// wraps around its cipher stream (HashedBlockStream for v3.1,
// HmacBlockStream for v4), the inner random stream that masks
// protected XML values, and a thin gzip adapter.
package stream

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"io"

	"github.com/kdbxgo/kdbxvault/errs"
)

// MaxBlockSize is the largest chunk either block stream will write at
// once.
const MaxBlockSize = 1 << 20

// HashedBlockReader reassembles the HashedBlockStream framing KDBX3.1
// uses: per-block `u32 index, 32B sha256, u32 size, data`, terminated
// by a zero-size block.
type HashedBlockReader struct {
	r       io.Reader
	pending bytes.Buffer
	index   uint32
	done    bool
}

func NewHashedBlockReader(r io.Reader) *HashedBlockReader {
	return &HashedBlockReader{r: r}
}

func (h *HashedBlockReader) Read(p []byte) (int, error) {
	for h.pending.Len() == 0 && !h.done {
		if err := h.readBlock(); err != nil {
			return 0, err
		}
	}
	if h.pending.Len() == 0 {
		return 0, io.EOF
	}
	return h.pending.Read(p)
}

func (h *HashedBlockReader) readBlock() error {
	var idxBuf [4]byte
	if _, err := io.ReadFull(h.r, idxBuf[:]); err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "hashed block stream: read index")
	}
	idx := binary.LittleEndian.Uint32(idxBuf[:])
	if idx != h.index {
		return errs.New(errs.KindIntegrity, "hashed block stream: out-of-order block index %d, want %d", idx, h.index)
	}

	var wantHash [32]byte
	if _, err := io.ReadFull(h.r, wantHash[:]); err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "hashed block stream: read hash")
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(h.r, sizeBuf[:]); err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "hashed block stream: read size")
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])

	if size == 0 {
		var zero [32]byte
		if !hmac.Equal(wantHash[:], zero[:]) {
			return errs.New(errs.KindIntegrity, "hashed block stream: terminal block has non-zero hash")
		}
		h.done = true
		return nil
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(h.r, data); err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "hashed block stream: read data")
	}
	got := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(got[:], wantHash[:]) != 1 {
		return errs.New(errs.KindIntegrity, "hashed block stream: hash mismatch at block %d", idx)
	}

	h.pending.Write(data)
	h.index++
	return nil
}

// HashedBlockWriter writes the HashedBlockStream framing, cutting the
// written bytes into blocks no larger than MaxBlockSize. Close must be
// called to emit the terminal zero-size block.
type HashedBlockWriter struct {
	w     io.Writer
	index uint32
}

func NewHashedBlockWriter(w io.Writer) *HashedBlockWriter {
	return &HashedBlockWriter{w: w}
}

func (h *HashedBlockWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > MaxBlockSize {
			n = MaxBlockSize
		}
		if err := h.writeBlock(p[:n]); err != nil {
			return written, err
		}
		p = p[n:]
		written += n
	}
	return written, nil
}

func (h *HashedBlockWriter) writeBlock(data []byte) error {
	hash := sha256.Sum256(data)
	if err := writeBlockHeader(h.w, h.index, hash[:], uint32(len(data))); err != nil {
		return err
	}
	if _, err := h.w.Write(data); err != nil {
		return errs.Wrap(errs.KindIO, err, "hashed block stream: write data")
	}
	h.index++
	return nil
}

// Close emits the terminal zero-size block.
func (h *HashedBlockWriter) Close() error {
	var zero [32]byte
	return writeBlockHeader(h.w, h.index, zero[:], 0)
}

func writeBlockHeader(w io.Writer, index uint32, hash []byte, size uint32) error {
	var idxBuf, sizeBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], index)
	binary.LittleEndian.PutUint32(sizeBuf[:], size)
	if _, err := w.Write(idxBuf[:]); err != nil {
		return errs.Wrap(errs.KindIO, err, "hashed block stream: write index")
	}
	if _, err := w.Write(hash); err != nil {
		return errs.Wrap(errs.KindIO, err, "hashed block stream: write hash")
	}
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return errs.Wrap(errs.KindIO, err, "hashed block stream: write size")
	}
	return nil
}

// HmacBlockKeys derives the per-block HMAC keys for a KDBX4 database:
// base key = SHA-512(masterSeed || transformedKey ||
// 0x01), block key = SHA-512(u64_le(blockIndex) || base key). Index
// math.MaxUint64 is reserved for the header HMAC.
type HmacBlockKeys struct {
	base [64]byte
}

func NewHmacBlockKeys(masterSeed, transformedKey []byte) *HmacBlockKeys {
	h := sha512.New()
	h.Write(masterSeed)
	h.Write(transformedKey)
	h.Write([]byte{0x01})
	var k HmacBlockKeys
	copy(k.base[:], h.Sum(nil))
	return &k
}

// BlockKey returns the HMAC-SHA-256 key for the given block index (or
// the header, using index ^uint64(0)).
func (k *HmacBlockKeys) BlockKey(index uint64) []byte {
	h := sha512.New()
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], index)
	h.Write(idxBuf[:])
	h.Write(k.base[:])
	return h.Sum(nil)
}

// HeaderBlockIndex is the reserved block index used to key the header
// HMAC.
const HeaderBlockIndex = ^uint64(0)

// HmacHeader computes the header HMAC over raw header bytes, keyed as
// BlockKey(HeaderBlockIndex).
func (k *HmacBlockKeys) HmacHeader(header []byte) []byte {
	mac := hmac.New(sha256.New, k.BlockKey(HeaderBlockIndex))
	mac.Write(header)
	return mac.Sum(nil)
}

// HmacBlockReader reassembles the HmacBlockStream framing KDBX4 uses:
// per-block `32B HMAC-SHA256, u32 size, data`, terminated by a
// zero-size block whose HMAC still covers its (empty) data at its index.
type HmacBlockReader struct {
	r       io.Reader
	keys    *HmacBlockKeys
	pending bytes.Buffer
	index   uint64
	done    bool
}

func NewHmacBlockReader(r io.Reader, keys *HmacBlockKeys) *HmacBlockReader {
	return &HmacBlockReader{r: r, keys: keys}
}

func (h *HmacBlockReader) Read(p []byte) (int, error) {
	for h.pending.Len() == 0 && !h.done {
		if err := h.readBlock(); err != nil {
			return 0, err
		}
	}
	if h.pending.Len() == 0 {
		return 0, io.EOF
	}
	return h.pending.Read(p)
}

func (h *HmacBlockReader) readBlock() error {
	var wantMAC [32]byte
	if _, err := io.ReadFull(h.r, wantMAC[:]); err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "hmac block stream: read mac")
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(h.r, sizeBuf[:]); err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "hmac block stream: read size")
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])

	data := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(h.r, data); err != nil {
			return errs.Wrap(errs.KindIntegrity, err, "hmac block stream: read data")
		}
	}

	mac := hmac.New(sha256.New, h.keys.BlockKey(h.index))
	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], h.index)
	mac.Write(idxBuf[:])
	mac.Write(sizeBuf[:])
	mac.Write(data)
	got := mac.Sum(nil)
	if subtle.ConstantTimeCompare(got, wantMAC[:]) != 1 {
		return errs.New(errs.KindIntegrity, "hmac block stream: mac mismatch at block %d", h.index)
	}

	if size == 0 {
		h.done = true
		return nil
	}
	h.pending.Write(data)
	h.index++
	return nil
}

// HmacBlockWriter writes the HmacBlockStream framing. Close emits the
// terminal zero-size block.
type HmacBlockWriter struct {
	w     io.Writer
	keys  *HmacBlockKeys
	index uint64
}

func NewHmacBlockWriter(w io.Writer, keys *HmacBlockKeys) *HmacBlockWriter {
	return &HmacBlockWriter{w: w, keys: keys}
}

func (h *HmacBlockWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > MaxBlockSize {
			n = MaxBlockSize
		}
		if err := h.writeBlock(p[:n]); err != nil {
			return written, err
		}
		p = p[n:]
		written += n
	}
	return written, nil
}

func (h *HmacBlockWriter) writeBlock(data []byte) error {
	var idx8 [8]byte
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint64(idx8[:], h.index)
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(data)))

	mac := hmac.New(sha256.New, h.keys.BlockKey(h.index))
	mac.Write(idx8[:])
	mac.Write(sizeBuf[:])
	mac.Write(data)
	tag := mac.Sum(nil)

	if _, err := h.w.Write(tag); err != nil {
		return errs.Wrap(errs.KindIO, err, "hmac block stream: write mac")
	}
	if _, err := h.w.Write(sizeBuf[:]); err != nil {
		return errs.Wrap(errs.KindIO, err, "hmac block stream: write size")
	}
	if _, err := h.w.Write(data); err != nil {
		return errs.Wrap(errs.KindIO, err, "hmac block stream: write data")
	}
	h.index++
	return nil
}

func (h *HmacBlockWriter) Close() error {
	return h.writeBlock(nil)
}

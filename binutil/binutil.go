// Package binutil provides the little-endian framed I/O helpers shared by
// the header, variant-map, and block-stream codecs. Every on-disk integer
// in the kdbx format is little-endian.
package binutil

import (
	"encoding/binary"
	"io"

	"github.com/kdbxgo/kdbxvault/errs"
)

// ReadUint8 reads a single byte as an unsigned 8-bit integer.
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errs.Wrap(errs.KindIO, err, "read u8")
	}
	return buf[0], nil
}

// ReadUint16 reads a little-endian uint16.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errs.Wrap(errs.KindIO, err, "read u16")
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errs.Wrap(errs.KindIO, err, "read u32")
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little-endian uint64.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errs.Wrap(errs.KindIO, err, "read u64")
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadBytes reads exactly n bytes.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "read %d bytes", n)
	}
	return buf, nil
}

// WriteUint8 writes b as a single byte.
func WriteUint8(w io.Writer, b uint8) error {
	_, err := w.Write([]byte{b})
	return err
}

// WriteUint16 writes v little-endian.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint32 writes v little-endian.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint64 writes v little-endian.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

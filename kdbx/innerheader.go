package kdbx

import (
	"encoding/binary"
	"io"

	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/stream"
)

// Inner header field ids (v4 only).
const (
	innerFieldEnd                  = 0
	innerFieldInnerRandomStreamID  = 1
	innerFieldInnerRandomStreamKey = 2
	innerFieldBinary               = 3
)

// BinaryAttachmentFlagProtected marks a binary as "protected in
// memory".
const BinaryAttachmentFlagProtected = 0x01

// Binary is one entry of the v4 inner-header binary pool.
type Binary struct {
	Protected bool
	Data      []byte
}

// InnerHeader is the v4-only header carried inside the decrypted,
// decompressed body, ahead of the XML payload.
type InnerHeader struct {
	InnerRandomStreamID  stream.InnerStreamID
	InnerRandomStreamKey []byte
	Binaries             []Binary
}

// ReadInnerHeader reads the TLV sequence terminated by innerFieldEnd.
// Unlike the outer header, unknown inner-header ids are rejected.
func ReadInnerHeader(r io.Reader) (*InnerHeader, error) {
	h := &InnerHeader{}
	for {
		var idBuf [1]byte
		if _, err := io.ReadFull(r, idBuf[:]); err != nil {
			return nil, errs.Wrap(errs.KindMalformed, err, "inner header: read field id")
		}
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, errs.Wrap(errs.KindMalformed, err, "inner header: read field length")
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		data := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, errs.Wrap(errs.KindMalformed, err, "inner header: read field data")
			}
		}

		switch idBuf[0] {
		case innerFieldEnd:
			return h, nil
		case innerFieldInnerRandomStreamID:
			if len(data) != 4 {
				return nil, errs.New(errs.KindMalformed, "inner header: stream id must be 4 bytes")
			}
			h.InnerRandomStreamID = stream.InnerStreamID(binary.LittleEndian.Uint32(data))
		case innerFieldInnerRandomStreamKey:
			h.InnerRandomStreamKey = data
		case innerFieldBinary:
			if len(data) < 1 {
				return nil, errs.New(errs.KindMalformed, "inner header: binary entry missing flags byte")
			}
			h.Binaries = append(h.Binaries, Binary{
				Protected: data[0]&BinaryAttachmentFlagProtected != 0,
				Data:      data[1:],
			})
		default:
			return nil, errs.New(errs.KindMalformed, "inner header: unknown field id %d", idBuf[0])
		}
	}
}

// WriteInnerHeader writes h's TLV sequence, terminated by innerFieldEnd.
func WriteInnerHeader(w io.Writer, h *InnerHeader) error {
	var streamIDBuf [4]byte
	binary.LittleEndian.PutUint32(streamIDBuf[:], uint32(h.InnerRandomStreamID))
	if err := writeInnerField(w, innerFieldInnerRandomStreamID, streamIDBuf[:]); err != nil {
		return err
	}
	if err := writeInnerField(w, innerFieldInnerRandomStreamKey, h.InnerRandomStreamKey); err != nil {
		return err
	}
	for _, b := range h.Binaries {
		flags := byte(0)
		if b.Protected {
			flags = BinaryAttachmentFlagProtected
		}
		payload := append([]byte{flags}, b.Data...)
		if err := writeInnerField(w, innerFieldBinary, payload); err != nil {
			return err
		}
	}
	return writeInnerField(w, innerFieldEnd, nil)
}

func writeInnerField(w io.Writer, id byte, data []byte) error {
	if _, err := w.Write([]byte{id}); err != nil {
		return errs.Wrap(errs.KindIO, err, "inner header: write field id")
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errs.Wrap(errs.KindIO, err, "inner header: write field length")
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return errs.Wrap(errs.KindIO, err, "inner header: write field data")
		}
	}
	return nil
}

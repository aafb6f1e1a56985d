// Package kdbx implements the outer container: the KDBX3/KDBX4 magic
// prefix, outer header TLVs, header integrity (StreamStartBytes for
// v3, SHA-256+HMAC for v4), and the cipher/compression/block-stream
// pipeline wrapping the XML payload.
package kdbx

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/variantmap"
)

// Magic prefix, identical for v3 and v4.
const (
	Sig1 uint32 = 0x9AA2D903
	Sig2 uint32 = 0xB54BFB67
)

// Outer header field ids, grounded in the well-known KDBX TLV layout.
const (
	fieldEnd                 = 0
	fieldComment             = 1
	fieldCipherID            = 2
	fieldCompressionFlags    = 3
	fieldMasterSeed          = 4
	fieldTransformSeed       = 5 // v3 only
	fieldTransformRounds     = 6 // v3 only
	fieldEncryptionIV        = 7
	fieldProtectedStreamKey  = 8  // v3 only
	fieldStreamStartBytes    = 9  // v3 only
	fieldInnerRandomStreamID = 10 // v3 only
	fieldKdfParameters       = 11 // v4 only
	fieldPublicCustomData    = 12 // v4 only (optional)
)

// endOfHeader is the fixed terminator value KeePass writes for field 0.
var endOfHeader = []byte{0x0D, 0x0A, 0x0D, 0x0A}

// OuterHeader is the parsed form of every outer-header TLV field,
// covering both the v3 and v4 layouts.
type OuterHeader struct {
	Comment          []byte
	CipherID         uuid.UUID
	Compression      model.Compression
	MasterSeed       []byte
	EncryptionIV     []byte
	PublicCustomData *variantmap.Map

	// v3-only fields.
	TransformSeed       []byte
	TransformRounds     uint64
	ProtectedStreamKey  []byte
	StreamStartBytes    []byte
	InnerRandomStreamID uint32

	// v4-only field.
	KdfParameters *variantmap.Map
}

// ReadOuterHeader reads the TLV field stream following the magic
// prefix. It returns the raw header bytes (every field, through and
// including the terminator, but not the magic prefix itself) for
// SHA-256/HMAC validation (v4) or the v3 HeaderHash XML element.
func ReadOuterHeader(r io.Reader, isV4 bool, logger *slog.Logger) (*OuterHeader, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var raw bytes.Buffer
	tee := io.TeeReader(r, &raw)

	h := &OuterHeader{}
	for {
		id, data, err := readField(tee, isV4)
		if err != nil {
			return nil, nil, err
		}
		if id == fieldEnd {
			break
		}
		if err := h.setField(id, data, isV4, logger); err != nil {
			return nil, nil, err
		}
	}
	return h, raw.Bytes(), nil
}

func readField(r io.Reader, isV4 bool) (id byte, data []byte, err error) {
	var idBuf [1]byte
	if _, err = io.ReadFull(r, idBuf[:]); err != nil {
		return 0, nil, errs.Wrap(errs.KindMalformed, err, "outer header: read field id")
	}
	id = idBuf[0]

	var length int
	if isV4 {
		var lenBuf [4]byte
		if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
			return 0, nil, errs.Wrap(errs.KindMalformed, err, "outer header: read field length")
		}
		length = int(binary.LittleEndian.Uint32(lenBuf[:]))
	} else {
		var lenBuf [2]byte
		if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
			return 0, nil, errs.Wrap(errs.KindMalformed, err, "outer header: read field length")
		}
		length = int(binary.LittleEndian.Uint16(lenBuf[:]))
	}

	data = make([]byte, length)
	if length > 0 {
		if _, err = io.ReadFull(r, data); err != nil {
			return 0, nil, errs.Wrap(errs.KindMalformed, err, "outer header: read field data")
		}
	}
	return id, data, nil
}

func (h *OuterHeader) setField(id byte, data []byte, isV4 bool, logger *slog.Logger) error {
	if err := rejectWrongVersionField(id, isV4); err != nil {
		return err
	}
	switch id {
	case fieldComment:
		h.Comment = data
	case fieldCipherID:
		if len(data) != 16 {
			return errs.New(errs.KindMalformed, "outer header: cipher id must be 16 bytes, got %d", len(data))
		}
		copy(h.CipherID[:], data)
	case fieldCompressionFlags:
		if len(data) != 4 {
			return errs.New(errs.KindMalformed, "outer header: compression flags must be 4 bytes")
		}
		h.Compression = model.Compression(binary.LittleEndian.Uint32(data))
	case fieldMasterSeed:
		h.MasterSeed = data
	case fieldTransformSeed:
		h.TransformSeed = data
	case fieldTransformRounds:
		if len(data) != 8 {
			return errs.New(errs.KindMalformed, "outer header: transform rounds must be 8 bytes")
		}
		h.TransformRounds = binary.LittleEndian.Uint64(data)
	case fieldEncryptionIV:
		h.EncryptionIV = data
	case fieldProtectedStreamKey:
		h.ProtectedStreamKey = data
	case fieldStreamStartBytes:
		h.StreamStartBytes = data
	case fieldInnerRandomStreamID:
		if len(data) != 4 {
			return errs.New(errs.KindMalformed, "outer header: inner random stream id must be 4 bytes")
		}
		h.InnerRandomStreamID = binary.LittleEndian.Uint32(data)
	case fieldKdfParameters:
		m, _, err := variantmap.DecodeBytes(data)
		if err != nil {
			return errs.Wrap(errs.KindMalformed, err, "outer header: kdf parameters")
		}
		h.KdfParameters = m
	case fieldPublicCustomData:
		m, _, err := variantmap.DecodeBytes(data)
		if err != nil {
			return errs.Wrap(errs.KindMalformed, err, "outer header: public custom data")
		}
		h.PublicCustomData = m
	default:
		// Unknown field ids on the outer header are logged and
		// ignored, unlike inner-header ids.
		logger.Warn("kdbx: ignoring unknown outer header field", "id", id, "length", len(data))
	}
	return nil
}

// rejectWrongVersionField rejects a v4-only field seen in a v3 header
// and vice versa.
func rejectWrongVersionField(id byte, isV4 bool) error {
	v3Only := id == fieldTransformSeed || id == fieldTransformRounds ||
		id == fieldProtectedStreamKey || id == fieldStreamStartBytes || id == fieldInnerRandomStreamID
	v4Only := id == fieldKdfParameters || id == fieldPublicCustomData

	if isV4 && v3Only {
		return errs.New(errs.KindUnsupportedVersion, "outer header: field id %d is KDBX3-only, found in a KDBX4 file", id)
	}
	if !isV4 && v4Only {
		return errs.New(errs.KindUnsupportedVersion, "outer header: field id %d is KDBX4-only, found in a KDBX3 file", id)
	}
	return nil
}

// WriteOuterHeader writes h's fields, returning the raw bytes written
// (for SHA-256/HMAC over the header).
func WriteOuterHeader(w io.Writer, h *OuterHeader, isV4 bool) ([]byte, error) {
	var buf bytes.Buffer
	mw := io.MultiWriter(w, &buf)

	if len(h.Comment) > 0 {
		if err := writeField(mw, isV4, fieldComment, h.Comment); err != nil {
			return nil, err
		}
	}
	if err := writeField(mw, isV4, fieldCipherID, h.CipherID[:]); err != nil {
		return nil, err
	}
	var compBuf [4]byte
	binary.LittleEndian.PutUint32(compBuf[:], uint32(h.Compression))
	if err := writeField(mw, isV4, fieldCompressionFlags, compBuf[:]); err != nil {
		return nil, err
	}
	if err := writeField(mw, isV4, fieldMasterSeed, h.MasterSeed); err != nil {
		return nil, err
	}

	if isV4 {
		if err := writeField(mw, isV4, fieldEncryptionIV, h.EncryptionIV); err != nil {
			return nil, err
		}
		kdfBytes, err := variantmap.EncodeBytes(h.KdfParameters)
		if err != nil {
			return nil, err
		}
		if err := writeField(mw, isV4, fieldKdfParameters, kdfBytes); err != nil {
			return nil, err
		}
		if h.PublicCustomData != nil {
			pcdBytes, err := variantmap.EncodeBytes(h.PublicCustomData)
			if err != nil {
				return nil, err
			}
			if err := writeField(mw, isV4, fieldPublicCustomData, pcdBytes); err != nil {
				return nil, err
			}
		}
	} else {
		if err := writeField(mw, isV4, fieldTransformSeed, h.TransformSeed); err != nil {
			return nil, err
		}
		var roundsBuf [8]byte
		binary.LittleEndian.PutUint64(roundsBuf[:], h.TransformRounds)
		if err := writeField(mw, isV4, fieldTransformRounds, roundsBuf[:]); err != nil {
			return nil, err
		}
		if err := writeField(mw, isV4, fieldEncryptionIV, h.EncryptionIV); err != nil {
			return nil, err
		}
		if err := writeField(mw, isV4, fieldProtectedStreamKey, h.ProtectedStreamKey); err != nil {
			return nil, err
		}
		if err := writeField(mw, isV4, fieldStreamStartBytes, h.StreamStartBytes); err != nil {
			return nil, err
		}
		var innerBuf [4]byte
		binary.LittleEndian.PutUint32(innerBuf[:], h.InnerRandomStreamID)
		if err := writeField(mw, isV4, fieldInnerRandomStreamID, innerBuf[:]); err != nil {
			return nil, err
		}
	}

	if err := writeField(mw, isV4, fieldEnd, endOfHeader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeField(w io.Writer, isV4 bool, id byte, data []byte) error {
	if _, err := w.Write([]byte{id}); err != nil {
		return errs.Wrap(errs.KindIO, err, "outer header: write field id")
	}
	if isV4 {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return errs.Wrap(errs.KindIO, err, "outer header: write field length")
		}
	} else {
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(data)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return errs.Wrap(errs.KindIO, err, "outer header: write field length")
		}
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return errs.Wrap(errs.KindIO, err, "outer header: write field data")
		}
	}
	return nil
}

// WriteMagic writes the 12-byte magic prefix for the given format
// version.
func WriteMagic(w io.Writer, version model.FormatVersion) error {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], Sig1)
	binary.LittleEndian.PutUint32(buf[4:8], Sig2)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(version))
	if _, err := w.Write(buf[:]); err != nil {
		return errs.Wrap(errs.KindIO, err, "kdbx: write magic")
	}
	return nil
}

// ReadMagic reads and validates the 12-byte magic prefix, returning
// the format version.
func ReadMagic(r io.Reader) (model.FormatVersion, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errs.Wrap(errs.KindMalformed, err, "kdbx: read magic")
	}
	sig1 := binary.LittleEndian.Uint32(buf[0:4])
	sig2 := binary.LittleEndian.Uint32(buf[4:8])
	if sig1 != Sig1 || sig2 != Sig2 {
		return 0, errs.New(errs.KindMalformed, "kdbx: bad magic signature %08x %08x", sig1, sig2)
	}
	version := model.FormatVersion(binary.LittleEndian.Uint32(buf[8:12]))
	if version.Major() != 3 && version.Major() != 4 {
		return 0, errs.New(errs.KindUnsupportedVersion, "kdbx: unsupported major version %d", version.Major())
	}
	return version, nil
}

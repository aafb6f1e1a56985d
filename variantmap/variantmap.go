// Package variantmap implements the small typed, length-prefixed
// key-value blob KeePass uses to carry KDF parameters and public custom
// data.
//
// Layout:
//
//	u16 version          (critical mask 0xFF00; reject if major > ours)
//	repeat until type==End(0x00):
//	    u8  type
//	    u32 name_len
//	    name_len bytes   (UTF-8)
//	    u32 value_len
//	    value_len bytes  (payload, little-endian for ints; 1 byte for bool)
//	u8 End(0x00)
package variantmap

import (
	"bytes"
	"io"

	"github.com/kdbxgo/kdbxvault/binutil"
	"github.com/kdbxgo/kdbxvault/errs"
)

// Type is the wire tag of a variant map value.
type Type byte

// Value type tags, as they appear on the wire.
const (
	TypeEnd       Type = 0x00
	TypeUInt32    Type = 0x04
	TypeUInt64    Type = 0x05
	TypeBool      Type = 0x08
	TypeInt32     Type = 0x0C
	TypeInt64     Type = 0x0D
	TypeString    Type = 0x18
	TypeByteArray Type = 0x42
)

// CurrentVersion is written into new variant maps. Its critical byte
// (high byte) is 0x01, the same value KeePass itself writes; Decode
// rejects maps whose critical byte is higher.
const CurrentVersion uint16 = 0x0100

// criticalMask isolates the major (critical) version byte.
const criticalMask = 0xFF00

// Value is a single typed variant map entry.
type Value struct {
	Type Type
	Raw  []byte
}

// Bool constructs a boolean value.
func Bool(b bool) Value {
	v := byte(0)
	if b {
		v = 1
	}
	return Value{Type: TypeBool, Raw: []byte{v}}
}

// Int32 constructs a signed 32-bit value.
func Int32(i int32) Value {
	return Value{Type: TypeInt32, Raw: le32(uint32(i))}
}

// UInt32 constructs an unsigned 32-bit value.
func UInt32(u uint32) Value {
	return Value{Type: TypeUInt32, Raw: le32(u)}
}

// Int64 constructs a signed 64-bit value.
func Int64(i int64) Value {
	return Value{Type: TypeInt64, Raw: le64(uint64(i))}
}

// UInt64 constructs an unsigned 64-bit value.
func UInt64(u uint64) Value {
	return Value{Type: TypeUInt64, Raw: le64(u)}
}

// String constructs a UTF-8 string value.
func String(s string) Value {
	return Value{Type: TypeString, Raw: []byte(s)}
}

// ByteArray constructs a raw byte-array value.
func ByteArray(b []byte) Value {
	return Value{Type: TypeByteArray, Raw: append([]byte(nil), b...)}
}

// AsBool returns the value interpreted as a bool.
func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool || len(v.Raw) != 1 {
		return false, errs.New(errs.KindMalformed, "variant map: not a 1-byte bool")
	}
	return v.Raw[0] != 0, nil
}

// AsInt32 returns the value interpreted as an int32.
func (v Value) AsInt32() (int32, error) {
	if v.Type != TypeInt32 || len(v.Raw) != 4 {
		return 0, errs.New(errs.KindMalformed, "variant map: not a 4-byte int32")
	}
	return int32(decodeLE32(v.Raw)), nil
}

// AsUInt32 returns the value interpreted as a uint32.
func (v Value) AsUInt32() (uint32, error) {
	if v.Type != TypeUInt32 || len(v.Raw) != 4 {
		return 0, errs.New(errs.KindMalformed, "variant map: not a 4-byte uint32")
	}
	return decodeLE32(v.Raw), nil
}

// AsInt64 returns the value interpreted as an int64.
func (v Value) AsInt64() (int64, error) {
	if v.Type != TypeInt64 || len(v.Raw) != 8 {
		return 0, errs.New(errs.KindMalformed, "variant map: not an 8-byte int64")
	}
	return int64(decodeLE64(v.Raw)), nil
}

// AsUInt64 returns the value interpreted as a uint64.
func (v Value) AsUInt64() (uint64, error) {
	if v.Type != TypeUInt64 || len(v.Raw) != 8 {
		return 0, errs.New(errs.KindMalformed, "variant map: not an 8-byte uint64")
	}
	return decodeLE64(v.Raw), nil
}

// AsString returns the value interpreted as a string.
func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", errs.New(errs.KindMalformed, "variant map: not a string")
	}
	return string(v.Raw), nil
}

// AsByteArray returns the value's raw bytes.
func (v Value) AsByteArray() ([]byte, error) {
	if v.Type != TypeByteArray {
		return nil, errs.New(errs.KindMalformed, "variant map: not a byte array")
	}
	return append([]byte(nil), v.Raw...), nil
}

// Map is an insertion-ordered set of named variant values.
type Map struct {
	order  []string
	values map[string]Value
}

// New returns an empty variant map.
func New() *Map {
	return &Map{values: make(map[string]Value)}
}

// Set assigns name to v, preserving the original insertion position if
// name is already present.
func (m *Map) Set(name string, v Value) {
	if _, ok := m.values[name]; !ok {
		m.order = append(m.order, name)
	}
	m.values[name] = v
}

// Get returns the value for name, if present.
func (m *Map) Get(name string) (Value, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Keys returns the names in insertion order.
func (m *Map) Keys() []string {
	return append([]string(nil), m.order...)
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.order) }

// Encode writes m to w using CurrentVersion.
func Encode(w io.Writer, m *Map) error {
	return EncodeVersion(w, m, CurrentVersion)
}

// EncodeVersion writes m to w tagged with the given version.
func EncodeVersion(w io.Writer, m *Map, version uint16) error {
	if err := binutil.WriteUint16(w, version); err != nil {
		return errs.Wrap(errs.KindIO, err, "variant map: write version")
	}
	for _, name := range m.order {
		v := m.values[name]
		if err := binutil.WriteUint8(w, byte(v.Type)); err != nil {
			return errs.Wrap(errs.KindIO, err, "variant map: write type")
		}
		nameBytes := []byte(name)
		if err := binutil.WriteUint32(w, uint32(len(nameBytes))); err != nil {
			return errs.Wrap(errs.KindIO, err, "variant map: write name length")
		}
		if _, err := w.Write(nameBytes); err != nil {
			return errs.Wrap(errs.KindIO, err, "variant map: write name")
		}
		if err := binutil.WriteUint32(w, uint32(len(v.Raw))); err != nil {
			return errs.Wrap(errs.KindIO, err, "variant map: write value length")
		}
		if _, err := w.Write(v.Raw); err != nil {
			return errs.Wrap(errs.KindIO, err, "variant map: write value")
		}
	}
	return binutil.WriteUint8(w, byte(TypeEnd))
}

// EncodeBytes encodes m to a byte slice using CurrentVersion.
func EncodeBytes(m *Map) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a variant map from r, returning the map and its version.
func Decode(r io.Reader) (*Map, uint16, error) {
	version, err := binutil.ReadUint16(r)
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindMalformed, err, "variant map: read version")
	}
	if version&criticalMask > CurrentVersion&criticalMask {
		return nil, version, errs.New(errs.KindUnsupportedVersion,
			"variant map: critical version 0x%04x beyond supported 0x%04x", version&criticalMask, CurrentVersion&criticalMask)
	}

	m := New()
	for {
		typeByte, err := binutil.ReadUint8(r)
		if err != nil {
			return nil, version, errs.Wrap(errs.KindMalformed, err, "variant map: read type")
		}
		t := Type(typeByte)
		if t == TypeEnd {
			break
		}

		nameLen, err := binutil.ReadUint32(r)
		if err != nil {
			return nil, version, errs.Wrap(errs.KindMalformed, err, "variant map: read name length")
		}
		name, err := binutil.ReadBytes(r, int(nameLen))
		if err != nil {
			return nil, version, errs.Wrap(errs.KindMalformed, err, "variant map: read name")
		}

		valueLen, err := binutil.ReadUint32(r)
		if err != nil {
			return nil, version, errs.Wrap(errs.KindMalformed, err, "variant map: read value length")
		}
		value, err := binutil.ReadBytes(r, int(valueLen))
		if err != nil {
			return nil, version, errs.Wrap(errs.KindMalformed, err, "variant map: read value")
		}

		if err := checkFixedWidth(t, len(value)); err != nil {
			return nil, version, err
		}
		m.Set(string(name), Value{Type: t, Raw: value})
	}
	return m, version, nil
}

// DecodeBytes decodes a variant map from data.
func DecodeBytes(data []byte) (*Map, uint16, error) {
	return Decode(bytes.NewReader(data))
}

func checkFixedWidth(t Type, n int) error {
	switch t {
	case TypeBool:
		if n != 1 {
			return errs.New(errs.KindMalformed, "variant map: bool value has length %d, want 1", n)
		}
	case TypeInt32, TypeUInt32:
		if n != 4 {
			return errs.New(errs.KindMalformed, "variant map: 32-bit value has length %d, want 4", n)
		}
	case TypeInt64, TypeUInt64:
		if n != 8 {
			return errs.New(errs.KindMalformed, "variant map: 64-bit value has length %d, want 8", n)
		}
	case TypeString, TypeByteArray:
		// variable width
	default:
		return errs.New(errs.KindMalformed, "variant map: unknown type 0x%02x", byte(t))
	}
	return nil
}

func le32(u uint32) []byte {
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func le64(u uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return b
}

func decodeLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func decodeLE64(b []byte) uint64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return u
}

package model

import "time"

// FormatVersion is the 32-bit KDBX format version: high 16 bits are the
// critical major version (3 or 4), low 16 bits are the minor version.
type FormatVersion uint32

// NewFormatVersion builds a FormatVersion from major/minor components.
func NewFormatVersion(major, minor uint16) FormatVersion {
	return FormatVersion(uint32(major)<<16 | uint32(minor))
}

// Major returns the critical major version (3 or 4).
func (v FormatVersion) Major() uint16 { return uint16(v >> 16) }

// Minor returns the minor version.
func (v FormatVersion) Minor() uint16 { return uint16(v) }

// IsV4 reports whether this is a KDBX4 (major version 4) format.
func (v FormatVersion) IsV4() bool { return v.Major() == 4 }

// Well-known format versions.
const (
	FormatKDBX3 FormatVersion = FormatVersion(3)<<16 | 1
	FormatKDBX4 FormatVersion = FormatVersion(4)<<16 | 0
)

// Compression selects whether the XML payload is gzip-compressed before
// the block/HMAC framing is applied.
type Compression uint32

const (
	CompressionNone Compression = 0
	CompressionGzip Compression = 1
)

// KDFParams carries the parameters for whichever KDF the database uses.
// Not every field applies to every KDF: AES-KDF uses Seed/Rounds,
// Argon2d/Argon2id use all of the Argon2 fields.
type KDFParams struct {
	UUID        ID
	Seed        []byte
	Rounds      uint64
	Parallelism uint32
	Memory      uint64
	Iterations  uint64
	Version     uint32
	SecretKey   []byte
	AssocData   []byte
}

// Database is the root of the loaded/about-to-be-saved tree. It does
// not know how to derive or verify keys itself (that's the kdf and
// compositekey packages' job); it just carries the parameters and the
// cached transformed key.
type Database struct {
	UUID ID

	CipherID    ID
	Compression Compression
	KDF         KDFParams

	FormatVersion FormatVersion

	Root *Group

	DeletedObjects []DeletedObject

	Metadata Metadata

	// TransformedKey caches the last KDF output computed for the
	// current CompositeKey+KDF combination. It is not cleared
	// automatically: InvalidateTransformedKey clears it, and a nil
	// value means "recompute".
	TransformedKey []byte
}

// NewDatabase returns an empty database with a fresh root group named
// name, the given format version, and metadata defaults.
func NewDatabase(name string, version FormatVersion, now time.Time) *Database {
	root := NewGroup(name, NewTimeInfo(now))
	return &Database{
		UUID:          NewID(),
		FormatVersion: version,
		Root:          root,
		Metadata:      NewMetadata(name, now),
	}
}

// InvalidateTransformedKey clears the cached transformed key, forcing
// recomputation on next save/load. Call this whenever the composite key
// or KDF parameters change.
func (d *Database) InvalidateTransformedKey() {
	d.TransformedKey = nil
}

// Package model holds the domain tree that a loaded database presents to
// callers: Database, Metadata, Group, Entry, and their supporting value
// types. It knows nothing about KDBX's on-disk encoding; that lives in
// kdbx and kdbxxml.
package model

import "github.com/google/uuid"

// ID is a database/group/entry/custom-icon identifier. KDBX encodes
// IDs as base64 of 16 RFC-4122 bytes; the XML layer owns that encoding,
// this package just needs a comparable identifier type.
type ID = uuid.UUID

// NewID returns a fresh random (v4) identifier.
func NewID() ID {
	return uuid.New()
}

// NilID is the all-zero identifier, used to mean "no parent" or "no
// custom icon" depending on context.
var NilID ID = uuid.Nil

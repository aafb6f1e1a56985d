// Package quickunlock defines the optional convenience-unlock
// collaborator: a keystore mapping a database's
// UUID to an encrypted composite-key blob, so a user isn't forced to
// retype a password every session. The core only depends on the
// interface below and must tolerate its absence entirely; Store's one
// concrete implementation here (sqlitestore.go) stands in for the
// OS-backed keystores (macOS Keychain, libsecret, Windows DPAPI) that
// are out of scope.
package quickunlock

import "github.com/google/uuid"

// Store is the put/get/has/clear-by-UUID contract the core consumes.
// Implementations own whatever encryption protects the blob at rest;
// Store itself treats blob as opaque bytes.
type Store interface {
	// Put saves blob under id, replacing any existing entry.
	Put(id uuid.UUID, blob []byte) error
	// Get returns the blob stored under id, or ok=false if absent.
	Get(id uuid.UUID) (blob []byte, ok bool, err error)
	// Has reports whether id has a stored entry, without reading it.
	Has(id uuid.UUID) (bool, error)
	// Clear removes id's entry, if any. Clearing an absent id is not
	// an error.
	Clear(id uuid.UUID) error
}

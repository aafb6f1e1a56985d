// Package secmem holds best-effort helpers for keeping secret material
// (composite key bytes, transformed keys, inner stream keys) off swap and
// zeroed on release. None of this is a hard guarantee: mlock can fail
// under low RLIMIT_MEMLOCK, and the runtime can have moved or copied a
// buffer before Zero is called.
package secmem

// Bytes is a byte buffer intended to hold secret material. It wraps a
// plain slice so the zero/lock operations have one obvious call site.
type Bytes struct {
	buf    []byte
	locked bool
}

// New allocates a Bytes of length n and attempts to lock it in memory.
func New(n int) *Bytes {
	b := &Bytes{buf: make([]byte, n)}
	b.locked = lock(b.buf)
	return b
}

// Wrap takes ownership of an existing slice, attempting to lock it.
func Wrap(b []byte) *Bytes {
	sb := &Bytes{buf: b}
	sb.locked = lock(b)
	return sb
}

// Bytes returns the underlying slice. Callers must not retain it past
// Release.
func (b *Bytes) Bytes() []byte { return b.buf }

// Locked reports whether the OS honored the lock request.
func (b *Bytes) Locked() bool { return b.locked }

// Release zeroes the buffer and unlocks it, in that order.
func (b *Bytes) Release() {
	if b == nil || b.buf == nil {
		return
	}
	Zero(b.buf)
	if b.locked {
		unlock(b.buf)
		b.locked = false
	}
	b.buf = nil
}

// Zero overwrites b with zero bytes. It does not prevent the compiler
// from proving the write is dead in unusual cases.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

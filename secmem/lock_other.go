//go:build !unix

package secmem

func lock(b []byte) bool {
	return false
}

func unlock(b []byte) {}

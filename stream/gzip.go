package stream

import (
	"compress/gzip"
	"io"

	"github.com/kdbxgo/kdbxvault/errs"
)

// NewGzipReader wraps r with gzip decompression, translating any
// format error into the Malformed error kind.
func NewGzipReader(r io.Reader) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errs.Wrap(errs.KindMalformed, err, "gzip: new reader")
	}
	return gz, nil
}

// NewGzipWriter wraps w with gzip compression at the default level.
func NewGzipWriter(w io.Writer) *gzip.Writer {
	return gzip.NewWriter(w)
}

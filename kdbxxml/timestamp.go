package kdbxxml

import (
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/kdbxgo/kdbxvault/errs"
)

// kdbxEpoch is the reference point for KDBX4's binary timestamp
// encoding: seconds elapsed since 0001-01-01T00:00:00Z.
var kdbxEpoch = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)

const iso8601Layout = "2006-01-02T15:04:05Z"

// encodeTimestamp renders t as v3 ISO-8601 UTC text, or as
// v4 base64 of a little-endian u64 second count since kdbxEpoch.
func encodeTimestamp(t time.Time, isV4 bool) string {
	t = t.UTC()
	if !isV4 {
		return t.Format(iso8601Layout)
	}
	secs := uint64(t.Unix() - kdbxEpoch.Unix())
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], secs)
	return base64.StdEncoding.EncodeToString(buf[:])
}

// decodeTimestamp parses s per the same rule encodeTimestamp uses. v4
// readers fall back to ISO-8601 parsing since some writers (and hand-
// edited test fixtures) emit text timestamps regardless of version.
func decodeTimestamp(s string, isV4 bool) (time.Time, error) {
	if isV4 {
		if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == 8 {
			secs := binary.LittleEndian.Uint64(raw)
			return time.Unix(int64(secs)+kdbxEpoch.Unix(), 0).UTC(), nil
		}
	}
	t, err := time.Parse(iso8601Layout, s)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.KindXML, err, "kdbxxml: invalid timestamp %q", s)
	}
	return t.UTC(), nil
}

package kdbxxml

import (
	"encoding/base64"

	"github.com/google/uuid"
	"github.com/kdbxgo/kdbxvault/errs"
)

// encodeUUID renders id as base64 of its 16 raw bytes.
func encodeUUID(id uuid.UUID) string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// encodeOptionalUUID is encodeUUID for references that are omitted
// from the document entirely when unset (CustomIconUUID,
// PreviousParentGroup).
func encodeOptionalUUID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return encodeUUID(id)
}

// decodeUUID parses the base64 encoding encodeUUID produces. An empty
// string decodes to the nil UUID, matching how KeePass writes an unset
// reference (e.g. CustomIconUUID) as an empty element.
func decodeUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return uuid.Nil, errs.New(errs.KindXML, "kdbxxml: invalid uuid %q", s)
	}
	var id uuid.UUID
	copy(id[:], raw)
	return id, nil
}

func encodeBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func decodeBool(s string) bool {
	return s == "True" || s == "true" || s == "1"
}

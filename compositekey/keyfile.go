package compositekey

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"

	"github.com/kdbxgo/kdbxvault/errs"
)

// keyFileXML mirrors the <Key><Data>...</Data></Key> document KeePass
// writes for XML-format key files.
type keyFileXML struct {
	XMLName xml.Name `xml:"KeyFile"`
	Key     struct {
		Data string `xml:"Data"`
	} `xml:"Key"`
}

// ParseKeyFile resolves the raw key bytes out of a key file's on-disk
// encoding, trying each of the three known formats in turn: a
// 32-byte binary blob, 64 hex characters, or the XML
// <KeyFile><Key><Data>base64</Data></Key></KeyFile> document. Anything
// else is treated as an arbitrary-length legacy key file, hashed down
// to size by KeyFileFactor.RawKey.
func ParseKeyFile(data []byte) (KeyFileFactor, error) {
	if trimmed := bytes.TrimSpace(data); looksLikeXML(trimmed) {
		var doc keyFileXML
		if err := xml.Unmarshal(trimmed, &doc); err == nil && doc.Key.Data != "" {
			decoded, err := base64.StdEncoding.DecodeString(doc.Key.Data)
			if err != nil {
				return KeyFileFactor{}, errs.Wrap(errs.KindMalformed, err, "keyfile: decode XML key data")
			}
			return NewKeyFileFactor(decoded), nil
		}
	}

	if len(data) == 64 && isHex(data) {
		decoded, err := hex.DecodeString(string(data))
		if err == nil {
			return NewKeyFileFactor(decoded), nil
		}
	}

	if len(data) == 32 {
		return NewKeyFileFactor(data), nil
	}

	return NewKeyFileFactor(data), nil
}

func looksLikeXML(data []byte) bool {
	return bytes.HasPrefix(data, []byte("<?xml")) || bytes.HasPrefix(data, []byte("<KeyFile"))
}

func isHex(data []byte) bool {
	for _, b := range data {
		switch {
		case b >= '0' && b <= '9':
		case b >= 'a' && b <= 'f':
		case b >= 'A' && b <= 'F':
		default:
			return false
		}
	}
	return true
}

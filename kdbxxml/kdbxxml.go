// Package kdbxxml implements the KDBX XML payload: the <KeePassFile>
// document tree (Meta/Root/Group/Entry/DeletedObjects), its timestamp
// and UUID encodings, and the protected-value masking that must walk
// the document in exactly the order the inner stream cipher was
// consumed when the file was written.
package kdbxxml

import "encoding/xml"

func xmlUnmarshal(data []byte, v any) error {
	return xml.Unmarshal(data, v)
}

package model

import "time"

// CustomDataItem is one value of a CustomData map: a string value plus
// an optional last-modified timestamp (KDBX 4.1+).
type CustomDataItem struct {
	Value                string
	LastModificationTime *time.Time
}

// CustomData is the ordered string-to-CustomDataItem map attached to
// Database, Group, and Entry.
type CustomData = OrderedMap[CustomDataItem]

// NewCustomData returns an empty CustomData.
func NewCustomData() *CustomData {
	return NewOrderedMap[CustomDataItem]()
}

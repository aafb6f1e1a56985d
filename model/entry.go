package model

// Attribute is one value of an Entry's Attributes map: a string value
// and whether it is protected by the inner stream cipher.
type Attribute struct {
	Value     string
	Protected bool
}

// Association binds a window title pattern to an auto-type keystroke
// sequence.
type Association struct {
	Window            string
	KeystrokeSequence string
}

// AutoType is an entry's auto-type configuration.
type AutoType struct {
	Enabled         bool
	ObfuscationType int
	DefaultSequence string
	Associations    []Association
}

// Entry is one leaf of the group/entry tree.
//
// Attributes and Attachments preserve insertion order so the XML
// writer emits them deterministically. History holds earlier
// snapshots of this entry; history entries have no History of their own
// and no Parent.
type Entry struct {
	UUID ID

	IconID          int32
	CustomIconUUID  ID
	ForegroundColor string
	BackgroundColor string
	OverrideURL     string
	Tags            []string

	Times TimeInfo

	Attributes  *OrderedMap[Attribute]
	Attachments *OrderedMap[int32] // attribute key -> binary pool id

	AutoType AutoType

	CustomData *CustomData

	PreviousParentGroup ID
	ExcludeFromReports  bool

	History []*Entry

	Parent *Group
}

// Standard attribute names, protected by default per Metadata's
// protection flags.
const (
	AttrTitle    = "Title"
	AttrUserName = "UserName"
	AttrPassword = "Password"
	AttrURL      = "URL"
	AttrNotes    = "Notes"
)

// NewEntry returns a new Entry with a fresh UUID and default TimeInfo.
func NewEntry(times TimeInfo) *Entry {
	return &Entry{
		UUID:        NewID(),
		Times:       times,
		Attributes:  NewOrderedMap[Attribute](),
		Attachments: NewOrderedMap[int32](),
		CustomData:  NewCustomData(),
	}
}

func (e *Entry) detach() {
	if e.Parent == nil {
		return
	}
	siblings := e.Parent.Entries
	for i, s := range siblings {
		if s == e {
			e.Parent.Entries = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	e.Parent = nil
}

// Get returns the value of attribute name, or "" if unset.
func (e *Entry) Get(name string) string {
	a, ok := e.Attributes.Get(name)
	if !ok {
		return ""
	}
	return a.Value
}

// Set assigns attribute name to value, protected or not.
func (e *Entry) Set(name, value string, protected bool) {
	e.Attributes.Set(name, Attribute{Value: value, Protected: protected})
}

// PushHistory appends the given snapshot (its Parent and History
// cleared) to History, truncating to maxItems most recent entries.
// maxItems < 0 means unlimited.
func (e *Entry) PushHistory(snapshot *Entry, maxItems int) {
	snapshot.Parent = nil
	snapshot.History = nil
	e.History = append(e.History, snapshot)
	if maxItems >= 0 && len(e.History) > maxItems {
		e.History = e.History[len(e.History)-maxItems:]
	}
}

// Clone returns a snapshot of e suitable for History, sharing no mutable
// state with the live entry (attribute/attachment maps are copied).
func (e *Entry) Clone() *Entry {
	clone := &Entry{
		UUID:                e.UUID,
		IconID:              e.IconID,
		CustomIconUUID:      e.CustomIconUUID,
		ForegroundColor:     e.ForegroundColor,
		BackgroundColor:     e.BackgroundColor,
		OverrideURL:         e.OverrideURL,
		Tags:                append([]string(nil), e.Tags...),
		Times:               e.Times,
		Attributes:          NewOrderedMap[Attribute](),
		Attachments:         NewOrderedMap[int32](),
		AutoType:            e.AutoType,
		CustomData:          NewCustomData(),
		PreviousParentGroup: e.PreviousParentGroup,
		ExcludeFromReports:  e.ExcludeFromReports,
	}
	for _, k := range e.Attributes.Keys() {
		v, _ := e.Attributes.Get(k)
		clone.Attributes.Set(k, v)
	}
	for _, k := range e.Attachments.Keys() {
		v, _ := e.Attachments.Get(k)
		clone.Attachments.Set(k, v)
	}
	for _, k := range e.CustomData.Keys() {
		v, _ := e.CustomData.Get(k)
		clone.CustomData.Set(k, v)
	}
	return clone
}

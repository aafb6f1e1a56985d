package kdbxxml

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/stream"
)

// BinaryPoolEntry is one v3.1 <Meta><Binaries> pool member. v4 carries
// its binary pool in the inner header instead (kdbx.InnerHeader), so
// this is only populated decoding a v3 document.
type BinaryPoolEntry struct {
	ID         int32
	Compressed bool
	Data       []byte
}

// Payload is everything the XML document carries besides the container
// framing: the metadata block, the group/entry tree, deletions, and
// (v3 only) the inline binary pool and header-hash assertion.
type Payload struct {
	Metadata       model.Metadata
	Root           *model.Group
	DeletedObjects []model.DeletedObject
	Binaries       []BinaryPoolEntry
	HeaderHash     []byte // v3 only, nil if absent
}

// protectedCursor walks the tree exactly once, in document order,
// consuming/producing inner-stream keystream bytes for
// each Protected value it touches.
type protectedCursor struct {
	stream stream.InnerStream
}

func (c *protectedCursor) mask(value string) string {
	if c.stream == nil {
		return value
	}
	in := []byte(value)
	out := make([]byte, len(in))
	c.stream.XOR(out, in)
	return string(out)
}

// Decode parses a full KDBX XML document, decrypting Protected values
// against innerStream in document order. innerStream may
// be nil if the document carries no protected values (rare, but legal).
func Decode(data []byte, isV4 bool, innerStream stream.InnerStream) (*Payload, error) {
	var file dtoFile
	if err := xmlUnmarshal(data, &file); err != nil {
		return nil, errs.Wrap(errs.KindXML, err, "kdbxxml: decode")
	}

	cursor := &protectedCursor{stream: innerStream}

	root, err := decodeGroup(&file.Root.Group, isV4, cursor)
	if err != nil {
		return nil, err
	}

	deleted := make([]model.DeletedObject, 0, len(file.Root.DeletedObjects))
	for _, d := range file.Root.DeletedObjects {
		id, err := decodeUUID(d.UUID)
		if err != nil {
			return nil, err
		}
		t, err := decodeTimestamp(d.DeletionTime, isV4)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, model.DeletedObject{UUID: id, Time: t})
	}

	meta, err := decodeMeta(&file.Meta, isV4)
	if err != nil {
		return nil, err
	}

	var binaries []BinaryPoolEntry
	for _, b := range file.Meta.Binaries {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b.Data))
		if err != nil {
			return nil, errs.Wrap(errs.KindXML, err, "kdbxxml: decode binary pool entry %d", b.ID)
		}
		binaries = append(binaries, BinaryPoolEntry{
			ID:         b.ID,
			Compressed: b.Compressed == "True",
			Data:       raw,
		})
	}

	var headerHash []byte
	if file.Meta.HeaderHash != "" {
		raw, err := base64.StdEncoding.DecodeString(file.Meta.HeaderHash)
		if err != nil {
			return nil, errs.Wrap(errs.KindXML, err, "kdbxxml: decode header hash")
		}
		headerHash = raw
	}

	return &Payload{
		Metadata:       meta,
		Root:           root,
		DeletedObjects: deleted,
		Binaries:       binaries,
		HeaderHash:     headerHash,
	}, nil
}

func decodeMeta(m *dtoMeta, isV4 bool) (model.Metadata, error) {
	var meta model.Metadata
	meta.Name = m.DatabaseName
	meta.Description = m.DatabaseDescription
	meta.DefaultUserName = m.DefaultUserName
	meta.MaintenanceHistoryDays = m.MaintenanceHistoryDays
	meta.Color = m.Color
	meta.MasterKeyChangeRec = m.MasterKeyChangeRec
	meta.MasterKeyChangeForce = m.MasterKeyChangeForce
	meta.HistoryMaxItems = m.HistoryMaxItems
	meta.HistoryMaxSize = m.HistoryMaxSize
	meta.CustomData = model.NewCustomData()

	for _, tsField := range []struct {
		src string
		dst *time.Time
	}{
		{m.DatabaseNameChanged, &meta.NameChanged},
		{m.DatabaseDescriptionChanged, &meta.DescriptionChanged},
		{m.DefaultUserNameChanged, &meta.DefaultUserNameChanged},
		{m.MasterKeyChanged, &meta.MasterKeyChanged},
		{m.EntryTemplatesGroupChanged, &meta.EntryTemplatesGroupChanged},
	} {
		if tsField.src == "" {
			continue
		}
		t, err := decodeTimestamp(tsField.src, isV4)
		if err != nil {
			return meta, err
		}
		*tsField.dst = t
	}

	meta.MemoryProtection = model.MemoryProtection{
		Title:    decodeBool(m.MemoryProtection.Title),
		UserName: decodeBool(m.MemoryProtection.UserName),
		Password: decodeBool(m.MemoryProtection.Password),
		URL:      decodeBool(m.MemoryProtection.URL),
		Notes:    decodeBool(m.MemoryProtection.Notes),
	}

	for _, icon := range m.CustomIcons {
		id, err := decodeUUID(icon.UUID)
		if err != nil {
			return meta, err
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(icon.Data))
		if err != nil {
			return meta, errs.Wrap(errs.KindXML, err, "kdbxxml: decode custom icon %s", icon.UUID)
		}
		ci := model.CustomIcon{UUID: id, Name: icon.Name, Data: raw}
		if icon.LastModificationTime != "" {
			t, err := decodeTimestamp(icon.LastModificationTime, isV4)
			if err != nil {
				return meta, err
			}
			ci.LastModified = t
		}
		meta.CustomIcons = append(meta.CustomIcons, ci)
	}

	meta.RecycleBinConfig.Enabled = decodeBool(m.RecycleBinEnabled)
	if m.RecycleBinUUID != "" {
		id, err := decodeUUID(m.RecycleBinUUID)
		if err != nil {
			return meta, err
		}
		meta.RecycleBinConfig.UUID = id
	}
	if m.RecycleBinChanged != "" {
		t, err := decodeTimestamp(m.RecycleBinChanged, isV4)
		if err != nil {
			return meta, err
		}
		meta.RecycleBinConfig.ChangedTime = t
	}

	if m.EntryTemplatesGroup != "" {
		id, err := decodeUUID(m.EntryTemplatesGroup)
		if err != nil {
			return meta, err
		}
		meta.EntryTemplatesGroup = id
	}
	if m.LastSelectedGroup != "" {
		id, err := decodeUUID(m.LastSelectedGroup)
		if err != nil {
			return meta, err
		}
		meta.LastSelectedGroup = id
	}
	if m.LastTopVisibleGroup != "" {
		id, err := decodeUUID(m.LastTopVisibleGroup)
		if err != nil {
			return meta, err
		}
		meta.LastTopVisibleGroup = id
	}

	for _, cd := range m.CustomData {
		item := model.CustomDataItem{Value: cd.Value}
		if cd.LastModificationTime != "" {
			t, err := decodeTimestamp(cd.LastModificationTime, isV4)
			if err != nil {
				return meta, err
			}
			item.LastModificationTime = &t
		}
		meta.CustomData.Set(cd.Key, item)
	}

	return meta, nil
}

func decodeTimes(t *dtoTimes, isV4 bool) (model.TimeInfo, error) {
	var out model.TimeInfo
	for _, f := range []struct {
		src string
		dst *time.Time
	}{
		{t.LastModificationTime, &out.LastModificationTime},
		{t.CreationTime, &out.CreationTime},
		{t.LastAccessTime, &out.LastAccessTime},
		{t.ExpiryTime, &out.ExpiryTime},
		{t.LocationChanged, &out.LocationChanged},
	} {
		if f.src == "" {
			continue
		}
		v, err := decodeTimestamp(f.src, isV4)
		if err != nil {
			return out, err
		}
		*f.dst = v
	}
	out.Expires = decodeBool(t.Expires)
	out.UsageCount = t.UsageCount
	return out, nil
}

func decodeGroup(g *dtoGroup, isV4 bool, cursor *protectedCursor) (*model.Group, error) {
	id, err := decodeUUID(g.UUID)
	if err != nil {
		return nil, err
	}
	times, err := decodeTimes(&g.Times, isV4)
	if err != nil {
		return nil, err
	}

	out := &model.Group{
		UUID:                    id,
		Name:                    g.Name,
		Notes:                   g.Notes,
		IconID:                  g.IconID,
		Times:                   times,
		IsExpanded:              decodeBool(g.IsExpanded),
		DefaultAutoTypeSequence: g.DefaultAutoTypeSequence,
		EnableAutoType:          decodeTriState(g.EnableAutoType),
		EnableSearching:         decodeTriState(g.EnableSearching),
		CustomData:              model.NewCustomData(),
	}
	if g.CustomIconUUID != "" {
		cid, err := decodeUUID(g.CustomIconUUID)
		if err != nil {
			return nil, err
		}
		out.CustomIconUUID = cid
	}
	if g.LastTopVisibleEntry != "" {
		leid, err := decodeUUID(g.LastTopVisibleEntry)
		if err != nil {
			return nil, err
		}
		out.LastTopVisibleEntry = leid
	}
	if g.PreviousParentGroup != "" {
		ppid, err := decodeUUID(g.PreviousParentGroup)
		if err != nil {
			return nil, err
		}
		out.PreviousParentGroup = ppid
	}
	for _, cd := range g.CustomData {
		out.CustomData.Set(cd.Key, model.CustomDataItem{Value: cd.Value})
	}

	// Document order: this group's entries (and each
	// entry's history) are masked before recursing into subgroups.
	for _, de := range g.Entries {
		e, err := decodeEntry(&de, isV4, cursor)
		if err != nil {
			return nil, err
		}
		out.AddEntry(e)
	}
	for _, dg := range g.Groups {
		child, err := decodeGroup(&dg, isV4, cursor)
		if err != nil {
			return nil, err
		}
		out.AddGroup(child)
	}

	return out, nil
}

func decodeEntry(e *dtoEntry, isV4 bool, cursor *protectedCursor) (*model.Entry, error) {
	id, err := decodeUUID(e.UUID)
	if err != nil {
		return nil, err
	}
	times, err := decodeTimes(&e.Times, isV4)
	if err != nil {
		return nil, err
	}

	out := &model.Entry{
		UUID:            id,
		IconID:          e.IconID,
		ForegroundColor: e.ForegroundColor,
		BackgroundColor: e.BackgroundColor,
		OverrideURL:     e.OverrideURL,
		Times:           times,
		Attributes:      model.NewOrderedMap[model.Attribute](),
		Attachments:     model.NewOrderedMap[int32](),
		CustomData:      model.NewCustomData(),
		AutoType: model.AutoType{
			Enabled:         decodeBool(e.AutoType.Enabled),
			ObfuscationType: int(e.AutoType.DataTransferObfuscation),
			DefaultSequence: e.AutoType.DefaultSequence,
		},
	}
	if e.CustomIconUUID != "" {
		cid, err := decodeUUID(e.CustomIconUUID)
		if err != nil {
			return nil, err
		}
		out.CustomIconUUID = cid
	}
	if e.Tags != "" {
		out.Tags = strings.Split(e.Tags, ";")
	}
	if e.PreviousParentGroup != "" {
		ppid, err := decodeUUID(e.PreviousParentGroup)
		if err != nil {
			return nil, err
		}
		out.PreviousParentGroup = ppid
	}
	for _, assoc := range e.AutoType.Associations {
		out.AutoType.Associations = append(out.AutoType.Associations, model.Association{
			Window:            assoc.Window,
			KeystrokeSequence: assoc.KeystrokeSequence,
		})
	}
	for _, cd := range e.CustomData {
		out.CustomData.Set(cd.Key, model.CustomDataItem{Value: cd.Value})
	}

	// Every <String>, protected or not, is visited in document order;
	// only protected ones consume keystream bytes (mask is a no-op
	// otherwise via the Protected flag check below).
	for _, s := range e.Strings {
		value := s.Value.Text
		protected := s.Value.Protected == "True"
		if protected {
			raw, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return nil, errs.Wrap(errs.KindXML, err, "kdbxxml: decode protected string %q", s.Key)
			}
			value = cursor.mask(string(raw))
		}
		out.Attributes.Set(s.Key, model.Attribute{Value: value, Protected: protected})
	}

	for _, a := range e.Attachments {
		ref, err := strconv.Atoi(a.Value.Ref)
		if err != nil {
			return nil, errs.Wrap(errs.KindXML, err, "kdbxxml: attachment ref %q", a.Value.Ref)
		}
		out.Attachments.Set(a.Key, int32(ref))
	}

	for _, h := range e.History {
		snap, err := decodeEntry(&h, isV4, cursor)
		if err != nil {
			return nil, err
		}
		out.History = append(out.History, snap)
	}

	return out, nil
}

func decodeTriState(s string) model.TriState {
	switch s {
	case "true":
		return model.Enable
	case "false":
		return model.Disable
	default:
		return model.Inherit
	}
}

func encodeTriState(t model.TriState) string {
	switch t {
	case model.Enable:
		return "true"
	case model.Disable:
		return "false"
	default:
		return "null"
	}
}

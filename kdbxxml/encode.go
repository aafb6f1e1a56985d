package kdbxxml

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/kdbxgo/kdbxvault/errs"
	"github.com/kdbxgo/kdbxvault/model"
	"github.com/kdbxgo/kdbxvault/stream"
)

// Encode serializes payload into a complete KeePassFile document,
// masking Protected values against innerStream in the same document
// order Decode consumes them in. Generator names the
// writer (embedded in <Meta><Generator>).
func Encode(payload *Payload, isV4 bool, innerStream stream.InnerStream, generator string) ([]byte, error) {
	cursor := &protectedCursor{stream: innerStream}

	file := dtoFile{
		Meta: encodeMeta(&payload.Metadata, isV4, generator, payload.Binaries, payload.HeaderHash),
	}

	root, err := encodeGroup(payload.Root, isV4, cursor)
	if err != nil {
		return nil, err
	}
	file.Root.Group = *root

	for _, d := range payload.DeletedObjects {
		file.Root.DeletedObjects = append(file.Root.DeletedObjects, dtoDeletedObject{
			UUID:         encodeUUID(d.UUID),
			DeletionTime: encodeTimestamp(d.Time, isV4),
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(&file); err != nil {
		return nil, errs.Wrap(errs.KindXML, err, "kdbxxml: encode")
	}
	if err := enc.Flush(); err != nil {
		return nil, errs.Wrap(errs.KindXML, err, "kdbxxml: flush")
	}

	return []byte(sanitizeXMLText(buf.String())), nil
}

func encodeMeta(m *model.Metadata, isV4 bool, generator string, binaries []BinaryPoolEntry, headerHash []byte) dtoMeta {
	out := dtoMeta{
		Generator:                  generator,
		DatabaseName:               m.Name,
		DatabaseNameChanged:        encodeTimestamp(m.NameChanged, isV4),
		DatabaseDescription:        m.Description,
		DatabaseDescriptionChanged: encodeTimestamp(m.DescriptionChanged, isV4),
		DefaultUserName:            m.DefaultUserName,
		DefaultUserNameChanged:     encodeTimestamp(m.DefaultUserNameChanged, isV4),
		MaintenanceHistoryDays:     m.MaintenanceHistoryDays,
		Color:                      m.Color,
		MasterKeyChanged:           encodeTimestamp(m.MasterKeyChanged, isV4),
		MasterKeyChangeRec:         m.MasterKeyChangeRec,
		MasterKeyChangeForce:       m.MasterKeyChangeForce,
		MemoryProtection: dtoMemProtect{
			Title:    encodeBool(m.MemoryProtection.Title),
			UserName: encodeBool(m.MemoryProtection.UserName),
			Password: encodeBool(m.MemoryProtection.Password),
			URL:      encodeBool(m.MemoryProtection.URL),
			Notes:    encodeBool(m.MemoryProtection.Notes),
		},
		RecycleBinEnabled:          encodeBool(m.RecycleBinConfig.Enabled),
		RecycleBinUUID:             encodeUUID(m.RecycleBinConfig.UUID),
		RecycleBinChanged:          encodeTimestamp(m.RecycleBinConfig.ChangedTime, isV4),
		EntryTemplatesGroup:        encodeUUID(m.EntryTemplatesGroup),
		EntryTemplatesGroupChanged: encodeTimestamp(m.EntryTemplatesGroupChanged, isV4),
		HistoryMaxItems:            m.HistoryMaxItems,
		HistoryMaxSize:             m.HistoryMaxSize,
		LastSelectedGroup:          encodeUUID(m.LastSelectedGroup),
		LastTopVisibleGroup:        encodeUUID(m.LastTopVisibleGroup),
	}

	if !isV4 && headerHash != nil {
		out.HeaderHash = base64.StdEncoding.EncodeToString(headerHash)
	}

	for _, icon := range m.CustomIcons {
		ic := dtoCustomIcon{
			UUID: encodeUUID(icon.UUID),
			Data: base64.StdEncoding.EncodeToString(icon.Data),
			Name: icon.Name,
		}
		if !icon.LastModified.IsZero() {
			ic.LastModificationTime = encodeTimestamp(icon.LastModified, isV4)
		}
		out.CustomIcons = append(out.CustomIcons, ic)
	}

	if m.CustomData != nil {
		for _, k := range m.CustomData.Keys() {
			v, _ := m.CustomData.Get(k)
			cd := dtoCustomData{Key: k, Value: v.Value}
			if v.LastModificationTime != nil {
				cd.LastModificationTime = encodeTimestamp(*v.LastModificationTime, isV4)
			}
			out.CustomData = append(out.CustomData, cd)
		}
	}

	if !isV4 {
		for _, b := range binaries {
			out.Binaries = append(out.Binaries, dtoBinary{
				ID:         b.ID,
				Compressed: encodeBool(b.Compressed),
				Data:       base64.StdEncoding.EncodeToString(b.Data),
			})
		}
	}

	return out
}

func encodeTimes(t *model.TimeInfo, isV4 bool) dtoTimes {
	return dtoTimes{
		LastModificationTime: encodeTimestamp(t.LastModificationTime, isV4),
		CreationTime:         encodeTimestamp(t.CreationTime, isV4),
		LastAccessTime:       encodeTimestamp(t.LastAccessTime, isV4),
		ExpiryTime:           encodeTimestamp(t.ExpiryTime, isV4),
		Expires:              encodeBool(t.Expires),
		UsageCount:           t.UsageCount,
		LocationChanged:      encodeTimestamp(t.LocationChanged, isV4),
	}
}

func encodeGroup(g *model.Group, isV4 bool, cursor *protectedCursor) (*dtoGroup, error) {
	out := &dtoGroup{
		UUID:                    encodeUUID(g.UUID),
		Name:                    g.Name,
		Notes:                   g.Notes,
		IconID:                  g.IconID,
		CustomIconUUID:          encodeOptionalUUID(g.CustomIconUUID),
		Times:                   encodeTimes(&g.Times, isV4),
		IsExpanded:              encodeBool(g.IsExpanded),
		DefaultAutoTypeSequence: g.DefaultAutoTypeSequence,
		EnableAutoType:          encodeTriState(g.EnableAutoType),
		EnableSearching:         encodeTriState(g.EnableSearching),
		LastTopVisibleEntry:     encodeUUID(g.LastTopVisibleEntry),
		PreviousParentGroup:     encodeOptionalUUID(g.PreviousParentGroup),
	}
	if g.CustomData != nil {
		for _, k := range g.CustomData.Keys() {
			v, _ := g.CustomData.Get(k)
			out.CustomData = append(out.CustomData, dtoCustomData{Key: k, Value: v.Value})
		}
	}

	// Mirrors decodeGroup's traversal: entries (and their history)
	// before subgroups, so Encode(Decode(x)) reproduces the same
	// keystream consumption order.
	for _, e := range g.Entries {
		de, err := encodeEntry(e, isV4, cursor)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, *de)
	}
	for _, c := range g.Groups {
		dg, err := encodeGroup(c, isV4, cursor)
		if err != nil {
			return nil, err
		}
		out.Groups = append(out.Groups, *dg)
	}

	return out, nil
}

func encodeEntry(e *model.Entry, isV4 bool, cursor *protectedCursor) (*dtoEntry, error) {
	out := &dtoEntry{
		UUID:            encodeUUID(e.UUID),
		IconID:          e.IconID,
		CustomIconUUID:  encodeOptionalUUID(e.CustomIconUUID),
		ForegroundColor: e.ForegroundColor,
		BackgroundColor: e.BackgroundColor,
		OverrideURL:     e.OverrideURL,
		Tags:            strings.Join(e.Tags, ";"),
		Times:           encodeTimes(&e.Times, isV4),
		AutoType: dtoAutoType{
			Enabled:                 encodeBool(e.AutoType.Enabled),
			DataTransferObfuscation: int32(e.AutoType.ObfuscationType),
			DefaultSequence:         e.AutoType.DefaultSequence,
		},
		PreviousParentGroup: encodeOptionalUUID(e.PreviousParentGroup),
	}
	for _, a := range e.AutoType.Associations {
		out.AutoType.Associations = append(out.AutoType.Associations, dtoAutoTypeAssoc{
			Window:            a.Window,
			KeystrokeSequence: a.KeystrokeSequence,
		})
	}
	if e.CustomData != nil {
		for _, k := range e.CustomData.Keys() {
			v, _ := e.CustomData.Get(k)
			out.CustomData = append(out.CustomData, dtoCustomData{Key: k, Value: v.Value})
		}
	}

	if e.Attributes != nil {
		for _, k := range e.Attributes.Keys() {
			a, _ := e.Attributes.Get(k)
			val := a.Value
			protected := ""
			if a.Protected {
				masked := cursor.mask(val)
				val = base64.StdEncoding.EncodeToString([]byte(masked))
				protected = "True"
			}
			out.Strings = append(out.Strings, dtoString{
				Key:   k,
				Value: dtoValue{Protected: protected, Text: val},
			})
		}
	}

	if e.Attachments != nil {
		for _, k := range e.Attachments.Keys() {
			ref, _ := e.Attachments.Get(k)
			out.Attachments = append(out.Attachments, dtoAttachment{
				Key:   k,
				Value: dtoBinaryRef{Ref: strconv.Itoa(int(ref))},
			})
		}
	}

	for _, h := range e.History {
		dh, err := encodeEntry(h, isV4, cursor)
		if err != nil {
			return nil, err
		}
		out.History = append(out.History, *dh)
	}

	return out, nil
}

package kdbxxml

import "encoding/xml"

// The dto* types are the literal on-disk XML document shape.
// Protected="True" values are left base64-encoded here; convert.go
// drives the inner-stream XOR in document order and produces the
// plaintext model tree.

type dtoFile struct {
	XMLName xml.Name `xml:"KeePassFile"`
	Meta    dtoMeta  `xml:"Meta"`
	Root    dtoRoot  `xml:"Root"`
}

type dtoMeta struct {
	Generator                  string          `xml:"Generator"`
	HeaderHash                 string          `xml:"HeaderHash,omitempty"`
	DatabaseName               string          `xml:"DatabaseName"`
	DatabaseNameChanged        string          `xml:"DatabaseNameChanged"`
	DatabaseDescription        string          `xml:"DatabaseDescription"`
	DatabaseDescriptionChanged string          `xml:"DatabaseDescriptionChanged"`
	DefaultUserName            string          `xml:"DefaultUserName"`
	DefaultUserNameChanged     string          `xml:"DefaultUserNameChanged"`
	MaintenanceHistoryDays     int32           `xml:"MaintenanceHistoryDays"`
	Color                      string          `xml:"Color"`
	MasterKeyChanged           string          `xml:"MasterKeyChanged"`
	MasterKeyChangeRec         int32           `xml:"MasterKeyChangeRec"`
	MasterKeyChangeForce       int32           `xml:"MasterKeyChangeForce"`
	MemoryProtection           dtoMemProtect   `xml:"MemoryProtection"`
	CustomIcons                []dtoCustomIcon `xml:"CustomIcons>Icon,omitempty"`
	RecycleBinEnabled          string          `xml:"RecycleBinEnabled"`
	RecycleBinUUID             string          `xml:"RecycleBinUUID"`
	RecycleBinChanged          string          `xml:"RecycleBinChanged"`
	EntryTemplatesGroup        string          `xml:"EntryTemplatesGroup"`
	EntryTemplatesGroupChanged string          `xml:"EntryTemplatesGroupChanged"`
	HistoryMaxItems            int32           `xml:"HistoryMaxItems"`
	HistoryMaxSize             int64           `xml:"HistoryMaxSize"`
	LastSelectedGroup          string          `xml:"LastSelectedGroup"`
	LastTopVisibleGroup        string          `xml:"LastTopVisibleGroup"`
	Binaries                   []dtoBinary     `xml:"Binaries>Binary,omitempty"`
	CustomData                 []dtoCustomData `xml:"CustomData>Item,omitempty"`
}

type dtoMemProtect struct {
	Title    string `xml:"ProtectTitle"`
	UserName string `xml:"ProtectUserName"`
	Password string `xml:"ProtectPassword"`
	URL      string `xml:"ProtectURL"`
	Notes    string `xml:"ProtectNotes"`
}

type dtoCustomIcon struct {
	UUID                 string `xml:"UUID"`
	Data                 string `xml:"Data"`
	Name                 string `xml:"Name,omitempty"`
	LastModificationTime string `xml:"LastModificationTime,omitempty"`
}

type dtoBinary struct {
	ID         int32  `xml:"ID,attr"`
	Compressed string `xml:"Compressed,attr,omitempty"`
	Data       string `xml:",chardata"`
}

type dtoCustomData struct {
	Key                  string `xml:"Key"`
	Value                string `xml:"Value"`
	LastModificationTime string `xml:"LastModificationTime,omitempty"`
}

type dtoRoot struct {
	Group          dtoGroup           `xml:"Group"`
	DeletedObjects []dtoDeletedObject `xml:"DeletedObjects>DeletedObject,omitempty"`
}

type dtoDeletedObject struct {
	UUID         string `xml:"UUID"`
	DeletionTime string `xml:"DeletionTime"`
}

type dtoGroup struct {
	UUID                    string          `xml:"UUID"`
	Name                    string          `xml:"Name"`
	Notes                   string          `xml:"Notes"`
	IconID                  int32           `xml:"IconID"`
	CustomIconUUID          string          `xml:"CustomIconUUID,omitempty"`
	Times                   dtoTimes        `xml:"Times"`
	IsExpanded              string          `xml:"IsExpanded"`
	DefaultAutoTypeSequence string          `xml:"DefaultAutoTypeSequence"`
	EnableAutoType          string          `xml:"EnableAutoType"`
	EnableSearching         string          `xml:"EnableSearching"`
	LastTopVisibleEntry     string          `xml:"LastTopVisibleEntry"`
	PreviousParentGroup     string          `xml:"PreviousParentGroup,omitempty"`
	CustomData              []dtoCustomData `xml:"CustomData>Item,omitempty"`
	Entries                 []dtoEntry      `xml:"Entry,omitempty"`
	Groups                  []dtoGroup      `xml:"Group,omitempty"`
}

type dtoTimes struct {
	LastModificationTime string `xml:"LastModificationTime"`
	CreationTime         string `xml:"CreationTime"`
	LastAccessTime       string `xml:"LastAccessTime"`
	ExpiryTime           string `xml:"ExpiryTime"`
	Expires              string `xml:"Expires"`
	UsageCount           uint32 `xml:"UsageCount"`
	LocationChanged      string `xml:"LocationChanged"`
}

type dtoEntry struct {
	UUID                string          `xml:"UUID"`
	IconID              int32           `xml:"IconID"`
	CustomIconUUID      string          `xml:"CustomIconUUID,omitempty"`
	ForegroundColor     string          `xml:"ForegroundColor"`
	BackgroundColor     string          `xml:"BackgroundColor"`
	OverrideURL         string          `xml:"OverrideURL"`
	Tags                string          `xml:"Tags"`
	Times               dtoTimes        `xml:"Times"`
	Strings             []dtoString     `xml:"String,omitempty"`
	Attachments         []dtoAttachment `xml:"Binary,omitempty"`
	AutoType            dtoAutoType     `xml:"AutoType"`
	CustomData          []dtoCustomData `xml:"CustomData>Item,omitempty"`
	PreviousParentGroup string          `xml:"PreviousParentGroup,omitempty"`
	History             []dtoEntry      `xml:"History>Entry,omitempty"`
}

type dtoString struct {
	Key   string   `xml:"Key"`
	Value dtoValue `xml:"Value"`
}

type dtoValue struct {
	Protected string `xml:"Protected,attr,omitempty"`
	Text      string `xml:",chardata"`
}

type dtoAttachment struct {
	Key   string       `xml:"Key"`
	Value dtoBinaryRef `xml:"Value"`
}

type dtoBinaryRef struct {
	Ref string `xml:"Ref,attr"`
}

type dtoAutoType struct {
	Enabled                 string             `xml:"Enabled"`
	DataTransferObfuscation int32              `xml:"DataTransferObfuscation"`
	DefaultSequence         string             `xml:"DefaultSequence,omitempty"`
	Associations            []dtoAutoTypeAssoc `xml:"Association,omitempty"`
}

type dtoAutoTypeAssoc struct {
	Window            string `xml:"Window"`
	KeystrokeSequence string `xml:"KeystrokeSequence"`
}

package model

import "time"

// CustomIcon is one entry in the database's custom icon collection.
type CustomIcon struct {
	UUID         ID
	Name         string
	LastModified time.Time
	Data         []byte
}

// RecycleBinConfig holds the recycle-bin group reference and policy
// flag.
type RecycleBinConfig struct {
	Enabled     bool
	UUID        ID
	ChangedTime time.Time
}

// MemoryProtection holds the five standard protection flags: which of
// Title/UserName/Password/URL/Notes are protected by the inner stream
// cipher by default for new attributes.
type MemoryProtection struct {
	Title    bool
	UserName bool
	Password bool
	URL      bool
	Notes    bool
}

// Metadata is the database-wide, non-tree information.
type Metadata struct {
	Name                   string
	NameChanged            time.Time
	Description            string
	DescriptionChanged     time.Time
	DefaultUserName        string
	DefaultUserNameChanged time.Time

	MaintenanceHistoryDays int32
	Color                  string

	MasterKeyChanged     time.Time
	MasterKeyChangeRec   int32
	MasterKeyChangeForce int32

	MemoryProtection MemoryProtection

	CustomIcons []CustomIcon

	RecycleBinConfig           RecycleBinConfig
	EntryTemplatesGroup        ID
	EntryTemplatesGroupChanged time.Time

	HistoryMaxItems int32
	HistoryMaxSize  int64

	LastSelectedGroup   ID
	LastTopVisibleGroup ID

	CustomData *CustomData
}

// NewMetadata returns Metadata with the defaults KeePass writes into a
// freshly created database: only Password protected, 10 history items
// max, a 365-day maintenance window, recycle bin enabled.
func NewMetadata(name string, now time.Time) Metadata {
	now = now.UTC()
	return Metadata{
		Name:                   name,
		NameChanged:            now,
		DefaultUserNameChanged: now,
		MaintenanceHistoryDays: 365,
		MasterKeyChanged:       now,
		MasterKeyChangeRec:     -1,
		MasterKeyChangeForce:   -1,
		MemoryProtection: MemoryProtection{
			Password: true,
		},
		RecycleBinConfig: RecycleBinConfig{
			Enabled: true,
		},
		HistoryMaxItems: 10,
		HistoryMaxSize:  6 * 1024 * 1024,
		CustomData:      NewCustomData(),
	}
}

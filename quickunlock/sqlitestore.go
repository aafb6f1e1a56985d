package quickunlock

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// entry is the one-table gorm model backing SQLiteStore: database UUID
// to opaque blob, nothing else. The blob's own encryption (if any) is
// the caller's concern; the store carries bytes, callers carry the
// crypto.
type entry struct {
	DatabaseUUID string `gorm:"primaryKey"`
	Blob         []byte
}

func (entry) TableName() string { return "quickunlock_entries" }

// SQLiteStore is a Store backed by a local sqlite file, the reference
// implementation used in the absence of a real OS keystore.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLiteStore opens (creating if absent) a sqlite database at path
// and ensures the quickunlock_entries table exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(id uuid.UUID, blob []byte) error {
	row := entry{DatabaseUUID: id.String(), Blob: append([]byte(nil), blob...)}
	return s.db.Save(&row).Error
}

func (s *SQLiteStore) Get(id uuid.UUID) ([]byte, bool, error) {
	var row entry
	err := s.db.First(&row, "database_uuid = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Blob, true, nil
}

func (s *SQLiteStore) Has(id uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&entry{}).Where("database_uuid = ?", id.String()).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteStore) Clear(id uuid.UUID) error {
	return s.db.Delete(&entry{}, "database_uuid = ?", id.String()).Error
}

// Close releases the underlying sqlite connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*SQLiteStore)(nil)

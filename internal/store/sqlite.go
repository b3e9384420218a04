package store

import (
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// row is the single table backing every collection.
type row struct {
	Collection string `gorm:"primaryKey;size:64"`
	Key        string `gorm:"primaryKey;size:191"`
	Payload    []byte
	UpdatedAt  time.Time
}

// TableName overrides the default pluralization
func (row) TableName() string { return "kv_records" }

type SqliteStore struct {
	db *gorm.DB
}

// NewSqliteStore opens (or creates) the database file and migrates the
// records table. Use "file::memory:?cache=shared" for a throwaway test DB.
func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Put(collection, id string, payload []byte) error {
	r := row{Collection: collection, Key: id, Payload: payload, UpdatedAt: time.Now()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&r).Error
	return quotaErr(err)
}

func (s *SqliteStore) Get(collection, id string) (*Record, error) {
	var r row
	err := s.db.Where("collection = ? AND key = ?", collection, id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Record{ID: r.Key, Payload: r.Payload, UpdatedAt: r.UpdatedAt}, nil
}

func (s *SqliteStore) GetAll(collection string) ([]Record, error) {
	var rows []row
	err := s.db.Where("collection = ?", collection).Order("updated_at desc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{ID: r.Key, Payload: r.Payload, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (s *SqliteStore) Delete(collection, id string) error {
	return s.db.Where("collection = ? AND key = ?", collection, id).Delete(&row{}).Error
}

func (s *SqliteStore) Clear(collection string) error {
	return s.db.Where("collection = ?", collection).Delete(&row{}).Error
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

type kvEntry struct {
	StorageKey string `gorm:"primaryKey;size:191"`
	Payload    []byte
	UpdatedAt  time.Time
}

func (kvEntry) TableName() string { return "kiosk_kv" }

// SQL stores values in a single kiosk_kv table through GORM. SQLite suits a
// tablet with a writable disk; Postgres suits kiosks booted from a
// read-only image with a local database service.
type SQL struct {
	db     *gorm.DB
	logger log.Printer
}

// OpenSQL opens driver ("sqlite" or "postgres") and migrates the table.
func OpenSQL(driver, dsn string, lg log.Printer) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: %s DSN not set", driver)
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), defaultDirPermsMode); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage: unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", driver, err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate %s storage: %w", driver, err)
	}
	return &SQL{db: db, logger: log.OrDefault(lg)}, nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var entry kvEntry
	err := s.db.WithContext(ctx).Where("storage_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql get '%s': %w", key, err)
	}
	return entry.Payload, nil
}

func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	entry := kvEntry{StorageKey: key, Payload: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("sql put '%s': %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("storage_key = ?", key).Delete(&kvEntry{}).Error
	if err != nil {
		return fmt.Errorf("sql delete '%s': %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

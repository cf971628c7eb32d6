package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	// Pure Go SQLite driver (no CGO required)
	_ "modernc.org/sqlite"

	"github.com/drallgood/bookfinder/internal/logger"
)

// MemoryDSN opens a private in-memory database
const MemoryDSN = ":memory:"

// Record is one key-value row
type Record struct {
	Key       string    `gorm:"column:record_key;primaryKey"`
	Value     string    `gorm:"column:record_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName pins the table name
func (Record) TableName() string {
	return "records"
}

// BeforeSave keeps UpdatedAt current
func (r *Record) BeforeSave(tx *gorm.DB) error {
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// SQLite is a Store backed by a SQLite file through GORM
type SQLite struct {
	db     *gorm.DB
	logger *logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates it
func OpenSQLite(path string, log *logger.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLite database path is required")
	}
	if log == nil {
		log = logger.ForComponent("storage")
	}

	if path != MemoryDSN {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite", // resolved by modernc.org/sqlite
		DSN:        path,
	}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite only supports one writer; a single connection also keeps
	// :memory: databases from splitting across connections.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if path != MemoryDSN {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			log.Warn("Failed to enable WAL mode", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
			log.Warn("Failed to set synchronous mode", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	log.Debug("Storage opened", map[string]interface{}{
		"driver": DriverSQLite,
		"path":   path,
	})

	return &SQLite{db: db, logger: log}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("record_key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return []byte(rec.Value), nil
}

func (s *SQLite) Put(ctx context.Context, key string, value []byte) error {
	rec := Record{Key: key, Value: string(value)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"record_value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("record_key = ?", key).Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Health pings the database
func (s *SQLite) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

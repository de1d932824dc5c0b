package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/etribe/portal/internal/infrastructure/logger"
)

// SessionEntry is one persisted session key
type SessionEntry struct {
	Key       string `gorm:"column:session_key;primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName implements gorm's tabler
func (SessionEntry) TableName() string {
	return "portal_session"
}

// SQLStore persists session state in a SQL database through GORM, so a
// restarted gateway keeps its login and caches.
type SQLStore struct {
	notifier
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite session database at path
func OpenSQLite(path string, zapLogger *zap.Logger, logLevel string) (*gorm.DB, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(logLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get session database handle: %w", err)
	}
	// single connection: SQLite serialises writers, and ":memory:" is per connection
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLStore migrates the session table and returns a store over db
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&SessionEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Get implements Store
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry SessionEntry
	err := s.db.WithContext(ctx).Where("session_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session key %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set implements Store
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	entry := SessionEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write session key %q: %w", key, err)
	}
	s.notify(Change{Key: key, Value: value})
	return nil
}

// Delete implements Store
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("session_key IN ?", keys).Delete(&SessionEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete session keys: %w", err)
	}
	for _, k := range keys {
		s.notify(Change{Key: k, Deleted: true})
	}
	return nil
}

// Clear implements Store
func (s *SQLStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SessionEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.notify(Change{Cleared: true})
	return nil
}

var _ Store = (*SQLStore)(nil)

// DB returns the underlying connection, for instrumentation
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

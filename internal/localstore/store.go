// Package localstore owns the client-side durable database: cached read
// results, the queue of pending write operations, and local progress
// snapshots. No other component persists state directly.
package localstore

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avolkau/studysync/internal/entities"
)

// ErrStorage wraps durable-store failures. Storage errors are surfaced to
// the caller and never retried automatically.
var ErrStorage = errors.New("offline store unavailable")

// StorageError reports a failed durable-store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("offline store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// WrapStorage converts a gorm error into a StorageError, passing nil through.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

type Store struct {
	DB *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store: %w", err)
	}

	err = db.AutoMigrate(
		&entities.CacheEntry{},
		&entities.QueuedOperation{},
		&entities.ProgressSnapshot{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate offline store: %w", err)
	}

	log.Printf("Offline store initialized at %s", dbPath)

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Package kv is the schemaless key-value persistence shared by presence,
// rules and round-robin cursors. Writes are last-writer-wins; there are no
// transactions and no compare-and-swap.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/crewradar/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes string values by key.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// GormStore implements Store on the kv_entries table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open database. The kv_entries table must exist.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the value stored under key. A missing key is not an error.
func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("kv: key is required")
	}
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where(&models.KVEntry{Key: key}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set overwrites the value stored under key.
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("kv: key is required")
	}
	entry := models.KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("kv: set %s: %w", key, result.Error)
	}
	return nil
}

// GetJSON decodes the value under key into dst. found is false when the key
// is absent. A malformed value returns found=true with a decode error so the
// caller can fall back to its defaults.
func GetJSON(ctx context.Context, s Store, key string, dst interface{}) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

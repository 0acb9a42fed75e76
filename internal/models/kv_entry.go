package models

import "time"

// KVEntry is one key of the schemaless key-value store. Value holds JSON.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

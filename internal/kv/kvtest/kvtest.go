// Package kvtest opens throwaway SQLite-backed stores for tests.
package kvtest

import (
	"path/filepath"
	"testing"

	"github.com/zulandar/crewradar/internal/db"
	"github.com/zulandar/crewradar/internal/kv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB opens a migrated SQLite database in a per-test temp directory.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crewradar-test.db")
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// Open returns a kv.GormStore over a fresh test database.
func Open(t testing.TB) *kv.GormStore {
	t.Helper()
	return kv.NewGormStore(OpenDB(t))
}

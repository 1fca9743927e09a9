package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/types"
)

// OpenSQLite opens an on-disk or in-memory sqlite database with the full
// schema migrated. Used by tests and local single-binary deployments. IDs are
// assigned client-side everywhere, so the schema carries no uuid defaults.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	err = gormDB.AutoMigrate(
		&types.Concept{},
		&types.Atom{},
		&types.PrerequisiteEdge{},
		&types.Waiver{},
		&types.MasteryState{},
		&types.ResponseEvent{},
		&types.ContentGap{},
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite automigrate: %w", err)
	}
	return gormDB, nil
}

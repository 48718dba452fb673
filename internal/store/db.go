package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrActivityNotFound is returned when an activity doesn't exist
var ErrActivityNotFound = errors.New("activity not found")

// ErrAnalysisNotFound is returned when no analysis record exists for an
// activity at the requested analysis version
var ErrAnalysisNotFound = errors.New("analysis not found")

// ErrPlanNotFound is returned when an activity has no planned workout
var ErrPlanNotFound = errors.New("planned workout not found")

// DB wraps the SQLite connection pool
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path, creating it if necessary.
// Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers anyway; one connection also keeps an
	// in-memory database alive across calls.
	sqlDB.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Run migrations
	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &DB{sqlDB}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

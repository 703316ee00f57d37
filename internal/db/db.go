package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// FileName is the database file inside the data directory
const FileName = "taskboard.db"

// Setting keys
const (
	KeyToken            = "token"
	KeyCurrentUser      = "current_user"
	KeySidebarCollapsed = "sidebar_collapsed"
	KeyLastScreen       = "last_screen"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the database in dataDir and initializes the schema
func New(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return Open(filepath.Join(dataDir, FileName))
}

// Open opens the database at path and initializes the schema
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db}, nil
}

// GetSetting retrieves a setting value by key. A missing key returns "".
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// DeleteSettings removes the given keys
func (db *DB) DeleteSettings(keys ...string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.Exec("DELETE FROM settings WHERE key = ?", k); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetBool reads a boolean setting; anything but "true" is false
func (db *DB) GetBool(key string) (bool, error) {
	v, err := db.GetSetting(key)
	return v == "true", err
}

func (db *DB) SetBool(key string, v bool) error {
	if v {
		return db.SetSetting(key, "true")
	}
	return db.SetSetting(key, "false")
}

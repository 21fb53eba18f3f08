package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	sqlStore
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{sqlStore{db: db}}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	document_id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL DEFAULT '',
	file_name TEXT,
	file_type TEXT,
	language TEXT,
	detection_count INTEGER NOT NULL DEFAULT 0,
	pii_risk_mean INTEGER NOT NULL DEFAULT 0,
	gdpr_risk_mean INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL,
	processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_job_id ON records(job_id);
CREATE INDEX IF NOT EXISTS idx_records_processed_at ON records(processed_at);

CREATE TABLE IF NOT EXISTS non_treated (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_non_treated_job_id ON non_treated(job_id);
`

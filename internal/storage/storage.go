// Package storage persists classification records and non-treated documents.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines record persistence operations.
type Storage interface {
	// Record operations. SaveRecord replaces an existing record with the same document ID.
	SaveRecord(ctx context.Context, jobID string, rec *models.ClassificationRecord) error
	GetRecord(ctx context.Context, documentID string) (*models.ClassificationRecord, error)
	DeleteRecord(ctx context.Context, documentID string) error
	ListRecords(ctx context.Context, offset, limit int) ([]*models.ClassificationRecord, error)
	ListRecordsByJob(ctx context.Context, jobID string) ([]*models.ClassificationRecord, error)

	// Non-treated documents
	SaveNonTreated(ctx context.Context, jobID string, nt models.NonTreated) error
	ListNonTreated(ctx context.Context, jobID string) ([]models.NonTreated, error)

	// Stats
	CountRecords(ctx context.Context) (int64, error)
	CountNonTreated(ctx context.Context) (int64, error)

	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.DatabasePath)
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, errors.New("storage: postgres driver requires postgres_url")
		}
		return NewPostgresStorage(ctx, DefaultPostgresConfig(cfg.PostgresURL))
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

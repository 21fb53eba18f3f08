package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/kakushi/internal/fileid"
	"github.com/hyperjump/kakushi/internal/jobs"
	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/internal/storage"
)

// ProcessFiles reads paths and processes them as one batch under a new job. Files that
// disappeared or cannot be read are logged and left out of the batch.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string, opts Options) (*jobs.Job, *models.BatchResult, error) {
	docs := make([]models.DocumentInput, 0, len(paths))
	for _, path := range paths {
		doc, err := DocumentFromFile(path)
		if err != nil {
			p.logger.Warn("failed to read file", zap.String("path", path), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	job := jobs.NewJob(len(docs))
	res, err := p.Process(ctx, job, docs, opts)
	return job, res, err
}

// Forget removes the stored record and index entry of the file at path.
// A file that was never processed is not an error.
func (p *Processor) Forget(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	id := fileid.ForPath(abs)
	if p.store != nil {
		if err := p.store.DeleteRecord(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete record %s: %w", id, err)
		}
	}
	if p.index != nil {
		if err := p.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete index entry %s: %w", id, err)
		}
	}
	p.logger.Debug("forgot file", zap.String("path", abs), zap.String("document_id", id))
	return nil
}

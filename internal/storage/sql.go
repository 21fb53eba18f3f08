package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kakushi/internal/models"
)

// sqlStore implements Storage over database/sql. Queries are written with ?
// placeholders and rebound for drivers that use numbered parameters.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	return rebind(query)
}

// rebind rewrites ? placeholders as $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRecord inserts or replaces the record for rec.DocumentID.
func (s *sqlStore) SaveRecord(ctx context.Context, jobID string, rec *models.ClassificationRecord) error {
	if rec == nil || rec.DocumentID == "" {
		return errors.New("record must have a document id")
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(
		`INSERT INTO records (document_id, job_id, file_name, file_type, language, detection_count, pii_risk_mean, gdpr_risk_mean, data, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id) DO UPDATE SET
		   job_id = excluded.job_id,
		   file_name = excluded.file_name,
		   file_type = excluded.file_type,
		   language = excluded.language,
		   detection_count = excluded.detection_count,
		   pii_risk_mean = excluded.pii_risk_mean,
		   gdpr_risk_mean = excluded.gdpr_risk_mean,
		   data = excluded.data,
		   processed_at = excluded.processed_at`),
		rec.DocumentID, jobID, rec.FileName, rec.FileType, rec.Language,
		rec.DetectionCount, rec.PIIRiskMean, rec.GDPRRiskMean, string(data), rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.DocumentID, err)
	}
	return nil
}

// GetRecord returns the record for documentID or ErrNotFound.
func (s *sqlStore) GetRecord(ctx context.Context, documentID string) (*models.ClassificationRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT data FROM records WHERE document_id = ?`), documentID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// DeleteRecord removes a record. Deleting a missing record returns ErrNotFound.
func (s *sqlStore) DeleteRecord(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM records WHERE document_id = ?`), documentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	return nil
}

// ListRecords returns records ordered by processing time, newest first.
func (s *sqlStore) ListRecords(ctx context.Context, offset, limit int) ([]*models.ClassificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT data FROM records ORDER BY processed_at DESC, document_id LIMIT ? OFFSET ?`),
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// ListRecordsByJob returns the records written by one job in document order.
func (s *sqlStore) ListRecordsByJob(ctx context.Context, jobID string) ([]*models.ClassificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT data FROM records WHERE job_id = ? ORDER BY processed_at, document_id`), jobID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// SaveNonTreated appends a skipped document to the job's list.
func (s *sqlStore) SaveNonTreated(ctx context.Context, jobID string, nt models.NonTreated) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO non_treated (job_id, document_id, reason, created_at) VALUES (?, ?, ?, ?)`),
		jobID, nt.DocumentID, string(nt.Reason), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save non-treated %s: %w", nt.DocumentID, err)
	}
	return nil
}

// ListNonTreated returns the documents skipped by a job in insertion order.
func (s *sqlStore) ListNonTreated(ctx context.Context, jobID string) ([]models.NonTreated, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT document_id, reason FROM non_treated WHERE job_id = ? ORDER BY id`), jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.NonTreated{}
	for rows.Next() {
		var nt models.NonTreated
		var reason string
		if err := rows.Scan(&nt.DocumentID, &reason); err != nil {
			return nil, err
		}
		nt.Reason = models.SkipReason(reason)
		out = append(out, nt)
	}
	return out, rows.Err()
}

// CountRecords returns the number of stored records.
func (s *sqlStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

// CountNonTreated returns the number of stored non-treated entries.
func (s *sqlStore) CountNonTreated(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM non_treated`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]*models.ClassificationRecord, error) {
	defer rows.Close()
	var out []*models.ClassificationRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeRecord(data string) (*models.ClassificationRecord, error) {
	var rec models.ClassificationRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

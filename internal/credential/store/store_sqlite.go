package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"tracevault/internal/credential/models"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

// SQLiteStore persists credential metadata in the vc_meta_data table,
// one JSON-serialized record per key.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite constructs a SQLite-backed metadata store over an injected pool.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Put(ctx context.Context, record models.Record) error {
	if record.IssuedAt.IsZero() {
		record.IssuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "marshal credential record")
	}

	// The primary key on `key` turns a collision into a constraint
	// violation instead of an overwrite.
	query := `INSERT INTO vc_meta_data (key, data, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		record.Key.String(),
		string(payload),
		record.IssuedAt.Format(time.RFC3339Nano),
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return pkgerrors.Wrap(err, pkgerrors.CodeStorage, "insert credential record")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key domain.CredentialKey) (models.Record, error) {
	query := `SELECT data, created_at FROM vc_meta_data WHERE key = ?`
	var payload, createdAt string
	err := s.db.QueryRowContext(ctx, query, key.String()).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, ErrNotFound
	}
	if err != nil {
		return models.Record{}, pkgerrors.Wrap(err, pkgerrors.CodeStorage, "query credential record")
	}

	var record models.Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return models.Record{}, pkgerrors.Wrap(err, pkgerrors.CodeStorage, "corrupt credential record")
	}
	record.Key = key
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.IssuedAt = ts
	}
	return record, nil
}

var _ Store = (*SQLiteStore)(nil)

// isUniqueViolation matches the sqlite unique-constraint failure without
// binding to driver-internal error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed (1555)")
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

// createdAtLayout is a fixed-width RFC 3339 form with a full nanosecond
// fraction. ORDER BY created_at compares the column as text, so every row
// must serialize to the same width; RFC3339Nano trims trailing zeros and
// would let sub-second siblings sort out of temporal order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists access events in the vc_access_logs table. The
// serialized payload keeps the row layout stable while the Event struct
// evolves; created_at is written explicitly so ordering is not limited to
// the column default's one-second granularity.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite constructs a SQLite-backed audit store over an injected pool.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Append(ctx context.Context, event Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "marshal access event")
	}

	query := `INSERT INTO vc_access_logs (owner, data, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		event.Owner.String(),
		string(payload),
		event.CreatedAt.UTC().Format(createdAtLayout),
	); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeStorage, "insert access event")
	}
	return nil
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, owner domain.DID) ([]Event, error) {
	query := `SELECT data, created_at FROM vc_access_logs WHERE owner = ? ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, owner.String())
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorage, "query access events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload, createdAt string
		if err := rows.Scan(&payload, &createdAt); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorage, "scan access event")
		}
		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorage, fmt.Sprintf("corrupt access event row for %s", owner))
		}
		event.Owner = owner
		if ts, err := time.Parse(createdAtLayout, createdAt); err == nil {
			event.CreatedAt = ts
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorage, "iterate access events")
	}
	return events, nil
}

var _ Store = (*SQLiteStore)(nil)

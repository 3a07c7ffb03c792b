package trace

import (
	"context"
	"database/sql"
	"errors"

	"tracevault/internal/blob"
	pkgerrors "tracevault/pkg/domain-errors"
)

// SQLiteNameLayer persists chain head pointers in the vc_name_pointers
// table so heads survive a process restart. The compare-and-swap is a
// conditional write: the statement only takes effect when the stored cid
// still matches the caller's expectation, and an unaffected row reports
// the conflict.
type SQLiteNameLayer struct {
	db *sql.DB
}

// NewSQLiteNameLayer constructs a durable NameLayer over an injected pool.
func NewSQLiteNameLayer(db *sql.DB) *SQLiteNameLayer {
	return &SQLiteNameLayer{db: db}
}

func (l *SQLiteNameLayer) Resolve(ctx context.Context, name string) (blob.ContentID, error) {
	var cid string
	err := l.db.QueryRowContext(ctx,
		`SELECT cid FROM vc_name_pointers WHERE name = ?`, name).Scan(&cid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoPointer
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.CodeStorage, "resolve name pointer")
	}
	return blob.ContentID(cid), nil
}

func (l *SQLiteNameLayer) CompareAndPublish(ctx context.Context, name string, expected, next blob.ContentID) error {
	var (
		res sql.Result
		err error
	)
	if expected == "" {
		// First publish. A concurrent first writer loses the race on the
		// primary key instead of overwriting.
		res, err = l.db.ExecContext(ctx,
			`INSERT INTO vc_name_pointers (name, cid) VALUES (?, ?)
			 ON CONFLICT (name) DO NOTHING`,
			name, string(next))
	} else {
		res, err = l.db.ExecContext(ctx,
			`UPDATE vc_name_pointers SET cid = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE name = ? AND cid = ?`,
			string(next), name, string(expected))
	}
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeStorage, "publish name pointer")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeStorage, "publish name pointer")
	}
	if affected == 0 {
		return ErrPointerConflict
	}
	return nil
}

var _ NameLayer = (*SQLiteNameLayer)(nil)

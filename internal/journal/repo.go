package journal

import (
	"context"
	"fmt"

	"github.com/starford/netmount/internal/models"
)

const defaultLimit = 50

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Storage string
	Limit   int
}

// Record appends rec to the journal and returns its id.
func (db *DB) Record(ctx context.Context, rec models.OperationRecord) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO operations (kind, src_storage, src_path, dst_storage, dst_path, ok, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(rec.Kind), rec.Src.Storage, rec.Src.Path, rec.Dst.Storage, rec.Dst.Path,
		rec.OK, rec.Error, rec.StartedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: insert: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent records first. Filter.Storage matches either
// side of an operation.
func (db *DB) List(ctx context.Context, f Filter) ([]models.OperationRecord, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = defaultLimit
	}

	q := `SELECT id, kind, src_storage, src_path, dst_storage, dst_path, ok, error, started_at, finished_at
		FROM operations`
	args := []any{}
	if f.Storage != "" {
		q += ` WHERE src_storage = ? OR dst_storage = ?`
		args = append(args, f.Storage, f.Storage)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	out := []models.OperationRecord{}
	for rows.Next() {
		var rec models.OperationRecord
		var kind string
		if err := rows.Scan(&rec.ID, &kind, &rec.Src.Storage, &rec.Src.Path,
			&rec.Dst.Storage, &rec.Dst.Path, &rec.OK, &rec.Error,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		rec.Kind = models.OperationKind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes everything but the newest keep records.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM operations
		WHERE id NOT IN (SELECT id FROM operations ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/internal/vector"
	"github.com/Try3D/Eunoia/store"
)

// ============================================================================
// VECTOR SEARCH
// ============================================================================
// Embeddings are stored as little-endian float32 BLOBs and similarity is
// computed in the Go application layer (O(n) over the table) with the
// vector package.
// ============================================================================

// CreateProjectRecords inserts records in a single transaction.
func (d *DB) CreateProjectRecords(ctx context.Context, records []*store.ProjectRecord) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO project_record
		(title, materials_required, steps, tips, difficulty, time_required, extra, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare project record insert")
	}
	defer stmt.Close()

	for i, r := range records {
		args, err := projectRecordArgs(r)
		if err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		if err := stmt.QueryRowContext(ctx, args...).Scan(&r.ID); err != nil {
			return errors.Wrapf(err, "failed to insert project record %d", i)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit project records")
}

func projectRecordArgs(r *store.ProjectRecord) ([]any, error) {
	materials, err := marshalJSON(nonNil(r.MaterialsRequired))
	if err != nil {
		return nil, err
	}
	steps, err := marshalJSON(nonNil(r.Steps))
	if err != nil {
		return nil, err
	}
	tips, err := marshalJSON(nonNil(r.Tips))
	if err != nil {
		return nil, err
	}
	extra := "{}"
	if len(r.Extra) > 0 {
		if extra, err = marshalJSON(r.Extra); err != nil {
			return nil, err
		}
	}
	var embedding any
	if len(r.Embedding) > 0 {
		embedding = vector.Encode(r.Embedding)
	}
	return []any{r.Title, materials, steps, tips, r.Difficulty, r.TimeRequired, extra, embedding}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const projectRecordColumns = `id, title, materials_required, steps, tips, difficulty, time_required, extra, embedding`

// ListProjectRecords lists project records in insertion order.
func (d *DB) ListProjectRecords(ctx context.Context, find *store.FindProjectRecord) ([]*store.ProjectRecord, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	query := `SELECT ` + projectRecordColumns + ` FROM project_record WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}
	return d.queryProjectRecords(ctx, query, args...)
}

func (d *DB) CountProjectRecords(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_record`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count project records")
	}
	return n, nil
}

// SearchProjectRecords computes the cosine distance to every record with a
// same-length embedding and returns the closest, ties kept in id order.
func (d *DB) SearchProjectRecords(ctx context.Context, opts *store.ProjectRecordSearchOptions) ([]*store.ProjectRecordWithDistance, error) {
	// 4 bytes per float32 component.
	records, err := d.queryProjectRecords(ctx,
		`SELECT `+projectRecordColumns+` FROM project_record WHERE embedding IS NOT NULL AND length(embedding) = ? ORDER BY id ASC`,
		len(opts.Vector)*4,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}

	results := make([]*store.ProjectRecordWithDistance, 0, len(records))
	for _, r := range records {
		results = append(results, &store.ProjectRecordWithDistance{
			Record:   r,
			Distance: 1 - vector.Cosine(opts.Vector, r.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (d *DB) queryProjectRecords(ctx context.Context, query string, args ...any) ([]*store.ProjectRecord, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list project records")
	}
	defer rows.Close()

	list := []*store.ProjectRecord{}
	for rows.Next() {
		r, err := scanProjectRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func scanProjectRecord(rows *sql.Rows) (*store.ProjectRecord, error) {
	var r store.ProjectRecord
	var materials, steps, tips, extra string
	var embedding []byte
	if err := rows.Scan(&r.ID, &r.Title, &materials, &steps, &tips, &r.Difficulty, &r.TimeRequired, &extra, &embedding); err != nil {
		return nil, errors.Wrap(err, "failed to scan project record")
	}
	for _, col := range []struct {
		raw string
		dst *[]string
	}{{materials, &r.MaterialsRequired}, {steps, &r.Steps}, {tips, &r.Tips}} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal project record %d", r.ID)
		}
	}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &r.Extra); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal extra of project record %d", r.ID)
		}
	}
	if len(embedding) > 0 {
		vec, err := vector.Decode(embedding)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode embedding of project record %d", r.ID)
		}
		r.Embedding = vec
	}
	return &r, nil
}

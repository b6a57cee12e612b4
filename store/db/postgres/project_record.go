package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/store"
)

// CreateProjectRecords inserts records in a single transaction.
func (d *DB) CreateProjectRecords(ctx context.Context, records []*store.ProjectRecord) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO project_record
		(title, materials_required, steps, tips, difficulty, time_required, extra, embedding)
		VALUES (`+placeholders(8)+`)
		RETURNING id`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare project record insert")
	}
	defer stmt.Close()

	for i, r := range records {
		extra := []byte("{}")
		if len(r.Extra) > 0 {
			if extra, err = json.Marshal(r.Extra); err != nil {
				return errors.Wrapf(err, "failed to marshal extra of record %d", i)
			}
		}
		var embedding any
		if len(r.Embedding) > 0 {
			embedding = pgvector.NewVector(r.Embedding)
		}
		if err := stmt.QueryRowContext(ctx,
			r.Title,
			pq.Array(nonNil(r.MaterialsRequired)),
			pq.Array(nonNil(r.Steps)),
			pq.Array(nonNil(r.Tips)),
			r.Difficulty,
			r.TimeRequired,
			string(extra),
			embedding,
		).Scan(&r.ID); err != nil {
			return errors.Wrapf(err, "failed to insert project record %d", i)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit project records")
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
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	query := `SELECT ` + projectRecordColumns + ` FROM project_record WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

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

func (d *DB) CountProjectRecords(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_record`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count project records")
	}
	return n, nil
}

// SearchProjectRecords performs a vector similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so rows
// are ordered by distance ASC to get the most similar first.
func (d *DB) SearchProjectRecords(ctx context.Context, opts *store.ProjectRecordSearchOptions) ([]*store.ProjectRecordWithDistance, error) {
	query := `
		SELECT ` + projectRecordColumns + `, embedding <=> $1 AS distance
		FROM project_record
		WHERE embedding IS NOT NULL
			AND vector_dims(embedding) = $2
		ORDER BY distance ASC, id ASC
		LIMIT $3`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, len(opts.Vector), opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.ProjectRecordWithDistance{}
	for rows.Next() {
		var distance float64
		r, err := scanProjectRecord(rows, &distance)
		if err != nil {
			return nil, err
		}
		// A zero-norm vector yields NaN, which Postgres sorts last.
		if math.IsNaN(distance) {
			distance = 1
		}
		results = append(results, &store.ProjectRecordWithDistance{Record: r, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanProjectRecord(rows *sql.Rows, extraDest ...any) (*store.ProjectRecord, error) {
	var r store.ProjectRecord
	var materials, steps, tips pq.StringArray
	var extra []byte
	var embedding pgvector.Vector
	var rawEmbedding sql.NullString

	dest := []any{&r.ID, &r.Title, &materials, &steps, &tips, &r.Difficulty, &r.TimeRequired, &extra, &rawEmbedding}
	if err := rows.Scan(append(dest, extraDest...)...); err != nil {
		return nil, errors.Wrap(err, "failed to scan project record")
	}
	r.MaterialsRequired = []string(materials)
	r.Steps = []string(steps)
	r.Tips = []string(tips)
	if len(extra) > 0 && string(extra) != "{}" {
		if err := json.Unmarshal(extra, &r.Extra); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal extra of project record %d", r.ID)
		}
	}
	if rawEmbedding.Valid {
		if err := embedding.Scan([]byte(rawEmbedding.String)); err != nil {
			return nil, errors.Wrapf(err, "failed to decode embedding of project record %d", r.ID)
		}
		r.Embedding = embedding.Slice()
	}
	return &r, nil
}

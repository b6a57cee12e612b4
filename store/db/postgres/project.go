package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/store"
)

func (d *DB) CreateProject(ctx context.Context, create *store.Project) (*store.Project, error) {
	stmt := `INSERT INTO projects (uid, user_id, title, materials, total_steps, completed_steps, progress, status, due_date, thumbnail, created_ts, updated_ts)
		VALUES (` + placeholders(12) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Title,
		pq.Array(create.Materials),
		create.TotalSteps,
		pq.Array(create.CompletedSteps),
		create.Progress,
		create.Status,
		create.DueDate,
		create.Thumbnail,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create project")
	}
	return create, nil
}

func (d *DB) ListProjects(ctx context.Context, find *store.FindProject) ([]*store.Project, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}

	query := `SELECT id, uid, user_id, title, materials, total_steps, completed_steps, progress, status, due_date, thumbnail, created_ts, updated_ts
		FROM projects
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC, id DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list projects")
	}
	defer rows.Close()

	list := []*store.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateProject(ctx context.Context, update *store.UpdateProject) (*store.Project, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	project, err := lockProject(ctx, tx, update.ID)
	if err != nil {
		return nil, err
	}
	if err := update.Apply(project); err != nil {
		return nil, err
	}
	project.UpdatedTs = update.UpdatedTs

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET completed_steps = $1, progress = $2, status = $3, updated_ts = $4 WHERE id = $5`,
		pq.Array(project.CompletedSteps), project.Progress, project.Status, project.UpdatedTs, project.ID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update project")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit project update")
	}
	return project, nil
}

// lockProject reads a project with a row lock held until the transaction ends.
func lockProject(ctx context.Context, tx *sql.Tx, id int32) (*store.Project, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, uid, user_id, title, materials, total_steps, completed_steps, progress, status, due_date, thumbnail, created_ts, updated_ts
		FROM projects
		WHERE id = $1
		FOR UPDATE`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock project")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to lock project")
		}
		return nil, errors.Wrapf(store.ErrNotFound, "project %d", id)
	}
	return scanProject(rows)
}

func scanProject(rows *sql.Rows) (*store.Project, error) {
	var p store.Project
	var materials pq.StringArray
	var completed pq.Int32Array
	if err := rows.Scan(
		&p.ID, &p.UID, &p.UserID, &p.Title, &materials, &p.TotalSteps, &completed,
		&p.Progress, &p.Status, &p.DueDate, &p.Thumbnail, &p.CreatedTs, &p.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan project")
	}
	p.Materials = []string(materials)
	if p.Materials == nil {
		p.Materials = []string{}
	}
	p.CompletedSteps = []int32(completed)
	if p.CompletedSteps == nil {
		p.CompletedSteps = []int32{}
	}
	return &p, nil
}

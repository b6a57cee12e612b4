package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/store"
)

func (d *DB) CreateProject(ctx context.Context, create *store.Project) (*store.Project, error) {
	materials, err := marshalJSON(create.Materials)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal materials")
	}
	completed, err := marshalJSON(create.CompletedSteps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal completed steps")
	}

	stmt := `INSERT INTO projects (uid, user_id, title, materials, total_steps, completed_steps, progress, status, due_date, thumbnail, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Title,
		materials,
		create.TotalSteps,
		completed,
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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
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

	// Writing first takes the database write lock before the read, the same
	// as BEGIN IMMEDIATE, so a second writer waits instead of racing.
	result, err := tx.ExecContext(ctx, `UPDATE projects SET updated_ts = ? WHERE id = ?`, update.UpdatedTs, update.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock project")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "project %d", update.ID)
	}

	project, err := getProject(ctx, tx, update.ID)
	if err != nil {
		return nil, err
	}
	if err := update.Apply(project); err != nil {
		return nil, err
	}
	project.UpdatedTs = update.UpdatedTs

	completed, err := marshalJSON(project.CompletedSteps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal completed steps")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET completed_steps = ?, progress = ?, status = ? WHERE id = ?`,
		completed, project.Progress, project.Status, project.ID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update project")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit project update")
	}
	return project, nil
}

func getProject(ctx context.Context, tx *sql.Tx, id int32) (*store.Project, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, uid, user_id, title, materials, total_steps, completed_steps, progress, status, due_date, thumbnail, created_ts, updated_ts
		FROM projects
		WHERE id = ?`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get project")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to get project")
		}
		return nil, errors.Wrapf(store.ErrNotFound, "project %d", id)
	}
	return scanProject(rows)
}

func scanProject(rows *sql.Rows) (*store.Project, error) {
	var p store.Project
	var materials, completed string
	if err := rows.Scan(
		&p.ID, &p.UID, &p.UserID, &p.Title, &materials, &p.TotalSteps, &completed,
		&p.Progress, &p.Status, &p.DueDate, &p.Thumbnail, &p.CreatedTs, &p.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan project")
	}
	if err := json.Unmarshal([]byte(materials), &p.Materials); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal materials")
	}
	if err := json.Unmarshal([]byte(completed), &p.CompletedSteps); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal completed steps")
	}
	return &p, nil
}

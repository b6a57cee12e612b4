package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	fields := []string{"username", "projects_completed", "total_xp", "streak_days", "avatar"}
	args := []any{create.Username, create.ProjectsCompleted, create.TotalXP, create.StreakDays, create.Avatar}
	if create.ID > 0 {
		fields, args = append(fields, "id"), append(args, create.ID)
	}

	stmt := "INSERT INTO users (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING id, created_ts"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return create, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Username != nil {
		where, args = append(where, "username = ?"), append(args, *find.Username)
	}

	query := `SELECT id, username, projects_completed, total_xp, streak_days, avatar, created_ts
		FROM users
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY total_xp DESC, id ASC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	list := []*store.User{}
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Username, &u.ProjectsCompleted, &u.TotalXP, &u.StreakDays, &u.Avatar, &u.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		list = append(list, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

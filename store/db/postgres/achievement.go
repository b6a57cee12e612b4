package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/store"
)

func (d *DB) CreateAchievement(ctx context.Context, create *store.Achievement) (*store.Achievement, error) {
	fields := []string{"title", "description", "icon", "xp", "total_required"}
	args := []any{create.Title, create.Description, create.Icon, create.XP, create.TotalRequired}
	explicitID := create.ID > 0
	if explicitID {
		fields, args = append(fields, "id"), append(args, create.ID)
	}

	stmt := `INSERT INTO achievements (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create achievement")
	}
	if explicitID {
		if err := d.syncSequence(ctx, "achievements"); err != nil {
			return nil, err
		}
	}
	return create, nil
}

func (d *DB) ListAchievements(ctx context.Context) ([]*store.Achievement, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, title, description, icon, xp, total_required FROM achievements ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list achievements")
	}
	defer rows.Close()

	list := []*store.Achievement{}
	for rows.Next() {
		var a store.Achievement
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Icon, &a.XP, &a.TotalRequired); err != nil {
			return nil, errors.Wrap(err, "failed to scan achievement")
		}
		list = append(list, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpsertUserAchievement(ctx context.Context, upsert *store.UserAchievement) (*store.UserAchievement, error) {
	stmt := `INSERT INTO user_achievements (user_id, achievement_id, unlocked, date_unlocked, progress)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (user_id, achievement_id) DO UPDATE SET
			unlocked = EXCLUDED.unlocked,
			date_unlocked = EXCLUDED.date_unlocked,
			progress = EXCLUDED.progress
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UserID,
		upsert.AchievementID,
		upsert.Unlocked,
		upsert.DateUnlocked,
		upsert.Progress,
	).Scan(&upsert.ID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert user achievement")
	}
	return upsert, nil
}

func (d *DB) ListUserAchievements(ctx context.Context, userID int32) ([]*store.UserAchievement, error) {
	query := `SELECT ua.id, ua.user_id, ua.achievement_id, ua.unlocked, ua.date_unlocked, ua.progress,
			a.title, a.description, a.icon, a.xp, a.total_required
		FROM user_achievements ua
		INNER JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ` + placeholder(1) + `
		ORDER BY a.id ASC`
	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user achievements")
	}
	defer rows.Close()

	list := []*store.UserAchievement{}
	for rows.Next() {
		ua := store.UserAchievement{Achievement: &store.Achievement{}}
		if err := rows.Scan(
			&ua.ID, &ua.UserID, &ua.AchievementID, &ua.Unlocked, &ua.DateUnlocked, &ua.Progress,
			&ua.Achievement.Title, &ua.Achievement.Description, &ua.Achievement.Icon, &ua.Achievement.XP, &ua.Achievement.TotalRequired,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan user achievement")
		}
		ua.Achievement.ID = ua.AchievementID
		list = append(list, &ua)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

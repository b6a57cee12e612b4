package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/store"
)

func (d *DB) CreateAchievement(ctx context.Context, create *store.Achievement) (*store.Achievement, error) {
	var err error
	if create.ID > 0 {
		_, err = d.db.ExecContext(ctx,
			`INSERT INTO achievements (id, title, description, icon, xp, total_required) VALUES (?, ?, ?, ?, ?, ?)`,
			create.ID, create.Title, create.Description, create.Icon, create.XP, create.TotalRequired,
		)
	} else {
		err = d.db.QueryRowContext(ctx,
			`INSERT INTO achievements (title, description, icon, xp, total_required) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			create.Title, create.Description, create.Icon, create.XP, create.TotalRequired,
		).Scan(&create.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create achievement")
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
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO UPDATE SET
			unlocked = excluded.unlocked,
			date_unlocked = excluded.date_unlocked,
			progress = excluded.progress
		RETURNING id`
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.UserID,
		upsert.AchievementID,
		boolToInt(upsert.Unlocked),
		upsert.DateUnlocked,
		upsert.Progress,
	).Scan(&upsert.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user achievement")
	}
	return upsert, nil
}

func (d *DB) ListUserAchievements(ctx context.Context, userID int32) ([]*store.UserAchievement, error) {
	query := `SELECT ua.id, ua.user_id, ua.achievement_id, ua.unlocked, ua.date_unlocked, ua.progress,
			a.title, a.description, a.icon, a.xp, a.total_required
		FROM user_achievements ua
		INNER JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ?
		ORDER BY a.id ASC`
	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user achievements")
	}
	defer rows.Close()

	list := []*store.UserAchievement{}
	for rows.Next() {
		ua := store.UserAchievement{Achievement: &store.Achievement{}}
		var unlocked int
		if err := rows.Scan(
			&ua.ID, &ua.UserID, &ua.AchievementID, &unlocked, &ua.DateUnlocked, &ua.Progress,
			&ua.Achievement.Title, &ua.Achievement.Description, &ua.Achievement.Icon, &ua.Achievement.XP, &ua.Achievement.TotalRequired,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan user achievement")
		}
		ua.Unlocked = unlocked != 0
		ua.Achievement.ID = ua.AchievementID
		list = append(list, &ua)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

package store

import (
	"context"
)

// Achievement is an entry of the achievement catalog.
type Achievement struct {
	ID            int32  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Icon          string `json:"icon"`
	XP            int32  `json:"xp"`
	TotalRequired int32  `json:"total_required"`
}

// UserAchievement is a user's progress towards one achievement.
type UserAchievement struct {
	ID            int32
	UserID        int32
	AchievementID int32
	Unlocked      bool
	// DateUnlocked is formatted as YYYY-MM-DD, empty while locked.
	DateUnlocked string
	Progress     int32

	// Achievement is joined in by ListUserAchievements.
	Achievement *Achievement
}

func (s *Store) CreateAchievement(ctx context.Context, create *Achievement) (*Achievement, error) {
	return s.driver.CreateAchievement(ctx, create)
}

func (s *Store) ListAchievements(ctx context.Context) ([]*Achievement, error) {
	return s.driver.ListAchievements(ctx)
}

// UpsertUserAchievement creates or updates the (user, achievement) progress row.
// Reaching the achievement's required total does not unlock it implicitly;
// callers set Unlocked.
func (s *Store) UpsertUserAchievement(ctx context.Context, upsert *UserAchievement) (*UserAchievement, error) {
	return s.driver.UpsertUserAchievement(ctx, upsert)
}

// ListUserAchievements lists the progress rows of a user with the catalog entry joined.
func (s *Store) ListUserAchievements(ctx context.Context, userID int32) ([]*UserAchievement, error) {
	return s.driver.ListUserAchievements(ctx, userID)
}

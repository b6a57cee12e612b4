package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

var seedAchievements = []*Achievement{
	{ID: 1, Title: "First Timer", Description: "Complete your first DIY project", Icon: "🌟", XP: 100, TotalRequired: 1},
	{ID: 2, Title: "Weekend Warrior", Description: "Complete 3 projects in one weekend", Icon: "⚡", XP: 250, TotalRequired: 3},
	{ID: 3, Title: "Tool Master", Description: "Use 10 different tools", Icon: "🔧", XP: 300, TotalRequired: 10},
	{ID: 4, Title: "Eco Warrior", Description: "Complete 5 upcycling projects", Icon: "♻️", XP: 400, TotalRequired: 5},
	{ID: 5, Title: "Safety First", Description: "Complete the safety tutorial", Icon: "🛡️", XP: 50, TotalRequired: 1},
	{ID: 6, Title: "Community Helper", Description: "Help 3 other makers with their projects", Icon: "🤝", XP: 200, TotalRequired: 3},
	{ID: 7, Title: "Perfect Streak", Description: "Complete 5 projects without any mistakes", Icon: "🎯", XP: 500, TotalRequired: 5},
	{ID: 8, Title: "Material Explorer", Description: "Use 15 different materials", Icon: "🧪", XP: 350, TotalRequired: 15},
}

var seedUsers = []*User{
	{ID: 1, Username: "DIYMaster", ProjectsCompleted: 47, TotalXP: 12500, StreakDays: 15, Avatar: "avatar1.jpg"},
	{ID: 2, Username: "CraftGenius", ProjectsCompleted: 42, TotalXP: 11200, StreakDays: 12, Avatar: "avatar2.jpg"},
	{ID: 3, Username: "MakerPro", ProjectsCompleted: 38, TotalXP: 10800, StreakDays: 8, Avatar: "avatar3.jpg"},
	{ID: 4, Username: "CreativeCrafter", ProjectsCompleted: 35, TotalXP: 9500, StreakDays: 6, Avatar: "avatar4.jpg"},
	{ID: 5, Username: "BuildItBetter", ProjectsCompleted: 31, TotalXP: 8900, StreakDays: 4, Avatar: "avatar5.jpg"},
}

var seedUserAchievements = []*UserAchievement{
	{UserID: 1, AchievementID: 1, Unlocked: true, DateUnlocked: "2024-01-15", Progress: 1},
	{UserID: 1, AchievementID: 5, Unlocked: true, DateUnlocked: "2024-01-10", Progress: 1},
	{UserID: 1, AchievementID: 2, Progress: 1},
	{UserID: 1, AchievementID: 3, Progress: 6},
	{UserID: 1, AchievementID: 4, Progress: 2},
	{UserID: 1, AchievementID: 6, Progress: 1},
	{UserID: 1, AchievementID: 7, Progress: 3},
	{UserID: 1, AchievementID: 8, Progress: 8},
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Achievements     int
	Users            int
	UserAchievements int
	ProjectRecords   int
	Skipped          bool
}

// Seed populates the demo catalog, users and corpus records. It is a no-op
// when users already exist, so it can run on every start. Records that arrive
// without values get the display defaults of the corpus.
func (s *Store) Seed(ctx context.Context, records []*ProjectRecord) (*SeedResult, error) {
	existing, err := s.ListUsers(ctx, &FindUser{Limit: 1})
	if err != nil {
		return nil, errors.Wrap(err, "failed to check existing users")
	}
	if len(existing) > 0 {
		slog.Info("store: seed skipped, database already populated")
		return &SeedResult{Skipped: true}, nil
	}

	result := &SeedResult{}
	for _, a := range seedAchievements {
		create := *a
		if _, err := s.CreateAchievement(ctx, &create); err != nil {
			return nil, errors.Wrapf(err, "failed to seed achievement %q", a.Title)
		}
		result.Achievements++
	}
	for _, u := range seedUsers {
		create := *u
		if _, err := s.CreateUser(ctx, &create); err != nil {
			return nil, errors.Wrapf(err, "failed to seed user %q", u.Username)
		}
		result.Users++
	}
	for _, ua := range seedUserAchievements {
		upsert := *ua
		if _, err := s.UpsertUserAchievement(ctx, &upsert); err != nil {
			return nil, errors.Wrapf(err, "failed to seed achievement %d for user %d", ua.AchievementID, ua.UserID)
		}
		result.UserAchievements++
	}

	normalized := make([]*ProjectRecord, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		rec := *r
		if rec.Title == "" {
			rec.Title = "Untitled Project"
		}
		if rec.Difficulty == "" {
			rec.Difficulty = "Medium"
		}
		if rec.TimeRequired == "" {
			rec.TimeRequired = "Unknown"
		}
		normalized = append(normalized, &rec)
	}
	if err := s.CreateProjectRecords(ctx, normalized); err != nil {
		return nil, errors.Wrap(err, "failed to seed project records")
	}
	result.ProjectRecords = len(normalized)

	slog.Info("store: seeded database",
		"achievements", result.Achievements,
		"users", result.Users,
		"user_achievements", result.UserAchievements,
		"project_records", result.ProjectRecords,
	)
	return result, nil
}

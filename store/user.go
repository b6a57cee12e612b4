package store

import (
	"context"

	"github.com/pkg/errors"
)

// User is a maker shown on the leaderboard.
type User struct {
	ID                int32
	Username          string
	ProjectsCompleted int32
	TotalXP           int32
	StreakDays        int32
	Avatar            string
	CreatedTs         int64
}

// FindUser specifies the conditions for finding users.
type FindUser struct {
	ID       *int32
	Username *string
	Limit    int
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	Name         string `json:"name"`
	DIYCompleted int32  `json:"diy_completed"`
	DaysActive   int32  `json:"days_active"`
	TotalXP      int32  `json:"total_xp"`
	Avatar       string `json:"avatar,omitempty"`
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	if create.Username == "" {
		return nil, errors.New("username is required")
	}
	return s.driver.CreateUser(ctx, create)
}

// ListUsers lists users ordered by total XP, highest first.
func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	if find == nil {
		find = &FindUser{}
	}
	return s.driver.ListUsers(ctx, find)
}

func (s *Store) GetUser(ctx context.Context, id int32) (*User, error) {
	list, err := s.driver.ListUsers(ctx, &FindUser{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "user %d", id)
	}
	return list[0], nil
}

// Leaderboard ranks users by total XP. Ties share the order the driver
// returns (by id) and receive consecutive ranks.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	users, err := s.ListUsers(ctx, &FindUser{Limit: limit})
	if err != nil {
		return nil, err
	}
	entries := make([]*LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = &LeaderboardEntry{
			Rank:         i + 1,
			Name:         u.Username,
			DIYCompleted: u.ProjectsCompleted,
			DaysActive:   u.StreakDays,
			TotalXP:      u.TotalXP,
			Avatar:       u.Avatar,
		}
	}
	return entries, nil
}

package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Achievement model related methods.
	CreateAchievement(ctx context.Context, create *Achievement) (*Achievement, error)
	ListAchievements(ctx context.Context) ([]*Achievement, error)
	UpsertUserAchievement(ctx context.Context, upsert *UserAchievement) (*UserAchievement, error)
	ListUserAchievements(ctx context.Context, userID int32) ([]*UserAchievement, error)

	// Project model related methods.
	CreateProject(ctx context.Context, create *Project) (*Project, error)
	ListProjects(ctx context.Context, find *FindProject) ([]*Project, error)
	// UpdateProject applies update.Apply to the locked row and persists the result atomically.
	UpdateProject(ctx context.Context, update *UpdateProject) (*Project, error)

	// ProjectRecord model related methods.
	CreateProjectRecords(ctx context.Context, records []*ProjectRecord) error
	ListProjectRecords(ctx context.Context, find *FindProjectRecord) ([]*ProjectRecord, error)
	CountProjectRecords(ctx context.Context) (int, error)
	SearchProjectRecords(ctx context.Context, opts *ProjectRecordSearchOptions) ([]*ProjectRecordWithDistance, error)
}

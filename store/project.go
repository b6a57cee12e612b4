package store

import (
	"context"
	"sort"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// Project status values.
const (
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
)

// ErrInvalidStep is returned when a step number is outside 1..TotalSteps.
var ErrInvalidStep = errors.New("invalid step number")

// Project is a DIY project a user is working through.
type Project struct {
	ID             int32
	UID            string
	UserID         int32
	Title          string
	Materials      []string
	TotalSteps     int32
	CompletedSteps []int32
	Progress       int32
	Status         string
	DueDate        string
	Thumbnail      string
	CreatedTs      int64
	UpdatedTs      int64
}

// FindProject specifies the conditions for finding projects.
type FindProject struct {
	ID     *int32
	UID    *string
	UserID *int32
}

// UpdateProject updates one project in place. Drivers read the row, call
// Apply and write CompletedSteps, Progress, Status and UpdatedTs back inside a
// single transaction that holds the row's write lock throughout, so
// concurrent updates of the same project are serialized.
type UpdateProject struct {
	ID        int32
	UpdatedTs int64
	// Apply mutates the current row. An error rolls the update back and is
	// returned unchanged.
	Apply func(*Project) error
}

// CompleteStep marks step (1-based) as completed. Completing a step twice is a
// no-op. Progress is the completed share in percent, rounded down; the project
// is completed when every step is.
func (p *Project) CompleteStep(step int32) error {
	if step < 1 || step > p.TotalSteps {
		return errors.Wrapf(ErrInvalidStep, "step %d of %d", step, p.TotalSteps)
	}
	for _, s := range p.CompletedSteps {
		if s == step {
			return nil
		}
	}
	p.CompletedSteps = append(p.CompletedSteps, step)
	sort.Slice(p.CompletedSteps, func(i, j int) bool { return p.CompletedSteps[i] < p.CompletedSteps[j] })

	p.Progress = int32(len(p.CompletedSteps)) * 100 / p.TotalSteps
	if p.Progress >= 100 {
		p.Progress = 100
		p.Status = ProjectStatusCompleted
	} else {
		p.Status = ProjectStatusInProgress
	}
	return nil
}

// CreateProject creates a project for a user.
func (s *Store) CreateProject(ctx context.Context, create *Project) (*Project, error) {
	if create.Title == "" {
		return nil, errors.New("project title is required")
	}
	if create.TotalSteps <= 0 {
		return nil, errors.Errorf("total steps must be positive: %d", create.TotalSteps)
	}
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Status == "" {
		create.Status = ProjectStatusInProgress
	}
	if create.Materials == nil {
		create.Materials = []string{}
	}
	if create.CompletedSteps == nil {
		create.CompletedSteps = []int32{}
	}
	now := time.Now().Unix()
	create.CreatedTs, create.UpdatedTs = now, now
	return s.driver.CreateProject(ctx, create)
}

func (s *Store) ListProjects(ctx context.Context, find *FindProject) ([]*Project, error) {
	if find == nil {
		find = &FindProject{}
	}
	return s.driver.ListProjects(ctx, find)
}

func (s *Store) GetProject(ctx context.Context, find *FindProject) (*Project, error) {
	list, err := s.driver.ListProjects(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(ErrNotFound, "project")
	}
	return list[0], nil
}

// CompleteProjectStep completes one step of a project and persists the new
// progress. Concurrent completions of different steps all land.
func (s *Store) CompleteProjectStep(ctx context.Context, projectID int32, step int32) (*Project, error) {
	return s.driver.UpdateProject(ctx, &UpdateProject{
		ID:        projectID,
		UpdatedTs: time.Now().Unix(),
		Apply: func(project *Project) error {
			return project.CompleteStep(step)
		},
	})
}

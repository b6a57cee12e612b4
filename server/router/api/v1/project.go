package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/store"
)

type projectResponse struct {
	ID             int32    `json:"id"`
	UID            string   `json:"uid"`
	UserID         int32    `json:"user_id"`
	Title          string   `json:"title"`
	Materials      []string `json:"materials"`
	TotalSteps     int32    `json:"total_steps"`
	CompletedSteps []int32  `json:"completed_steps"`
	Progress       int32    `json:"progress"`
	Status         string   `json:"status"`
	DueDate        string   `json:"dueDate,omitempty"`
	Thumbnail      string   `json:"thumbnail,omitempty"`
	CreatedTs      int64    `json:"created_ts"`
	UpdatedTs      int64    `json:"updated_ts"`
}

func convertProjectFromStore(p *store.Project) *projectResponse {
	return &projectResponse{
		ID:             p.ID,
		UID:            p.UID,
		UserID:         p.UserID,
		Title:          p.Title,
		Materials:      p.Materials,
		TotalSteps:     p.TotalSteps,
		CompletedSteps: p.CompletedSteps,
		Progress:       p.Progress,
		Status:         p.Status,
		DueDate:        p.DueDate,
		Thumbnail:      p.Thumbnail,
		CreatedTs:      p.CreatedTs,
		UpdatedTs:      p.UpdatedTs,
	}
}

func (s *APIV1Service) ListProjects(c echo.Context) error {
	find := &store.FindProject{}
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := parseID(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "user_id must be an integer").SetInternal(err)
		}
		find.UserID = &userID
	}
	projects, err := s.Store.ListProjects(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list projects").SetInternal(err)
	}
	resp := make([]*projectResponse, len(projects))
	for i, p := range projects {
		resp[i] = convertProjectFromStore(p)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "projects": resp})
}

type createProjectRequest struct {
	UserID     int32    `json:"user_id"`
	Title      string   `json:"title"`
	Materials  []string `json:"materials"`
	TotalSteps int32    `json:"total_steps"`
	DueDate    string   `json:"dueDate"`
	Thumbnail  string   `json:"thumbnail"`
}

func (s *APIV1Service) CreateProject(c echo.Context) error {
	req := &createProjectRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if req.TotalSteps <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "total_steps must be positive")
	}
	if req.UserID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	ctx := c.Request().Context()
	if _, err := s.Store.GetUser(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found").SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user").SetInternal(err)
	}

	project, err := s.Store.CreateProject(ctx, &store.Project{
		UserID:     req.UserID,
		Title:      req.Title,
		Materials:  req.Materials,
		TotalSteps: req.TotalSteps,
		DueDate:    req.DueDate,
		Thumbnail:  req.Thumbnail,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create project").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"status": "success", "project": convertProjectFromStore(project)})
}

// CompleteProjectStep marks one step done and returns the updated project.
func (s *APIV1Service) CompleteProjectStep(c echo.Context) error {
	projectID, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project id").SetInternal(err)
	}
	step, err := parseID(c.Param("step"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step number").SetInternal(err)
	}

	project, err := s.Store.CompleteProjectStep(c.Request().Context(), projectID, step)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "project not found").SetInternal(err)
		case errors.Is(err, store.ErrInvalidStep):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to complete step").SetInternal(err)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "project": convertProjectFromStore(project)})
}

package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const defaultLeaderboardLimit = 50

type leaderboardResponse struct {
	Status      string `json:"status"`
	Leaderboard any    `json:"leaderboard"`
}

func (s *APIV1Service) Leaderboard(c echo.Context) error {
	limit := defaultLeaderboardLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	entries, err := s.Store.Leaderboard(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load leaderboard").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &leaderboardResponse{Status: "success", Leaderboard: entries})
}

type achievementResponse struct {
	ID            int32  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Icon          string `json:"icon"`
	XP            int32  `json:"xp"`
	TotalRequired int32  `json:"total_required"`
	Unlocked      bool   `json:"unlocked"`
	Progress      int32  `json:"progress"`
	DateUnlocked  string `json:"date_unlocked,omitempty"`
}

// ListAchievements returns the achievement catalog. With a user_id query the
// user's progress is merged in; achievements the user never touched are locked
// with zero progress.
func (s *APIV1Service) ListAchievements(c echo.Context) error {
	ctx := c.Request().Context()
	catalog, err := s.Store.ListAchievements(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list achievements").SetInternal(err)
	}

	resp := make([]*achievementResponse, len(catalog))
	index := make(map[int32]*achievementResponse, len(catalog))
	for i, a := range catalog {
		resp[i] = &achievementResponse{
			ID:            a.ID,
			Title:         a.Title,
			Description:   a.Description,
			Icon:          a.Icon,
			XP:            a.XP,
			TotalRequired: a.TotalRequired,
		}
		index[a.ID] = resp[i]
	}

	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := parseID(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "user_id must be an integer").SetInternal(err)
		}
		progress, err := s.Store.ListUserAchievements(ctx, userID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to list user achievements").SetInternal(err)
		}
		for _, ua := range progress {
			if r, ok := index[ua.AchievementID]; ok {
				r.Unlocked = ua.Unlocked
				r.Progress = ua.Progress
				r.DateUnlocked = ua.DateUnlocked
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]any{"status": "success", "achievements": resp})
}

func parseID(raw string) (int32, error) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

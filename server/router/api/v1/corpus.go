package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReloadCorpus re-reads the corpus and swaps it in. On failure the previous
// corpus keeps serving.
func (s *APIV1Service) ReloadCorpus(c echo.Context) error {
	if s.Retriever == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval is not configured")
	}
	size, err := s.Retriever.Reload(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reload corpus").SetInternal(err)
	}
	slog.Info("corpus reloaded", "source", s.Retriever.Source(), "records", size)
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "success",
		"corpus_size": size,
		"source":      s.Retriever.Source(),
	})
}

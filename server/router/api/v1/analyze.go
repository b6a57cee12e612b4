package v1

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Try3D/Eunoia/ai/advisor"
	"github.com/Try3D/Eunoia/ai/core/llm"
	"github.com/Try3D/Eunoia/ai/core/retrieval"
)

// analyzeModePure skips retrieval and generates from the listed items only.
const analyzeModePure = "pure"

type analyzeResponse struct {
	Status  string                 `json:"status"`
	Message *advisor.Project       `json:"message"`
	Items   []string               `json:"items"`
	Similar []retrieval.Suggestion `json:"similar"`
}

// Analyze lists the items in an uploaded photo, looks up similar corpus
// projects and asks the model for a new project built from those items.
func (s *APIV1Service) Analyze(c echo.Context) error {
	if err := s.requireAdvisor(); err != nil {
		return err
	}
	ctx := c.Request().Context()

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required").SetInternal(err)
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file").SetInternal(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file").SetInternal(err)
	}
	if len(data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "file is empty")
	}
	mimeType := fh.Header.Get(echo.HeaderContentType)
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		mimeType = http.DetectContentType(data)
	}

	release, err := s.acquireLLM(ctx)
	if err != nil {
		return err
	}
	defer release()

	items, err := s.Advisor.ListItems(ctx, llm.Image{MIMEType: mimeType, Data: data})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to analyze image").SetInternal(err)
	}

	similar := []retrieval.Suggestion{}
	if s.Retriever != nil && c.FormValue("mode") != analyzeModePure && len(items) > 0 {
		suggestions, err := s.Retriever.Suggest(ctx, items, s.Retriever.DefaultTopN())
		if err != nil {
			slog.Warn("analyze: retrieval failed, generating without references",
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", err,
			)
		} else {
			similar = suggestions
		}
	}

	project, err := s.Advisor.GenerateProject(ctx, items, similar)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate project").SetInternal(err)
	}

	return c.JSON(http.StatusOK, &analyzeResponse{
		Status:  "success",
		Message: project,
		Items:   items,
		Similar: similar,
	})
}

type suggestRequest struct {
	Materials []string `json:"materials"`
	TopN      *int     `json:"top_n"`
}

type suggestResponse struct {
	Status      string                 `json:"status"`
	Suggestions []retrieval.Suggestion `json:"suggestions"`
}

// Suggest returns the corpus projects closest to the given materials.
func (s *APIV1Service) Suggest(c echo.Context) error {
	if s.Retriever == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval is not configured")
	}
	req := &suggestRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	materials := make([]string, 0, len(req.Materials))
	for _, m := range req.Materials {
		if m = strings.TrimSpace(m); m != "" {
			materials = append(materials, m)
		}
	}
	if len(materials) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "materials are required")
	}
	topN := s.Retriever.DefaultTopN()
	if req.TopN != nil {
		if *req.TopN < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "top_n must not be negative")
		}
		topN = *req.TopN
	}

	suggestions, err := s.Retriever.Suggest(c.Request().Context(), materials, topN)
	if err != nil {
		if errors.Is(err, retrieval.ErrEncoderFailure) {
			return echo.NewHTTPError(http.StatusBadGateway, "failed to embed materials").SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to match materials").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &suggestResponse{Status: "success", Suggestions: suggestions})
}

type clarifyStepRequest struct {
	ProjectTitle string      `json:"projectTitle"`
	StepNumber   json.Number `json:"stepNumber"`
	StepContent  string      `json:"stepContent"`
}

type clarifyStepResponse struct {
	Status        string                 `json:"status"`
	Clarification *advisor.Clarification `json:"clarification"`
}

// ClarifyStep expands a single project step into detailed instructions.
func (s *APIV1Service) ClarifyStep(c echo.Context) error {
	if err := s.requireAdvisor(); err != nil {
		return err
	}
	req := &clarifyStepRequest{}
	if err := json.NewDecoder(c.Request().Body).Decode(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if req.ProjectTitle == "" || req.StepNumber == "" || req.StepContent == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	}
	stepNumber, err := strconv.Atoi(req.StepNumber.String())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "stepNumber must be an integer").SetInternal(err)
	}

	ctx := c.Request().Context()
	release, err := s.acquireLLM(ctx)
	if err != nil {
		return err
	}
	defer release()

	clarification, err := s.Advisor.ClarifyStep(ctx, req.ProjectTitle, stepNumber, req.StepContent)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clarify step").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &clarifyStepResponse{Status: "success", Clarification: clarification})
}

package v1

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Try3D/Eunoia/ai/advisor"
	"github.com/Try3D/Eunoia/ai/core/llm"
	"github.com/Try3D/Eunoia/ai/core/retrieval"
	"github.com/Try3D/Eunoia/ai/metrics"
	"github.com/Try3D/Eunoia/internal/profile"
	"github.com/Try3D/Eunoia/store"
)

// Retriever finds corpus projects similar to a list of materials.
type Retriever interface {
	Suggest(ctx context.Context, materials []string, topN int) ([]retrieval.Suggestion, error)
	Reload(ctx context.Context) (int, error)
	Size(ctx context.Context) (int, error)
	Source() string
	DefaultTopN() int
}

// Advisor runs the language model steps of the project flow.
type Advisor interface {
	ListItems(ctx context.Context, image llm.Image) ([]string, error)
	GenerateProject(ctx context.Context, items []string, references []retrieval.Suggestion) (*advisor.Project, error)
	ClarifyStep(ctx context.Context, title string, stepNumber int, content string) (*advisor.Clarification, error)
}

// maxUploadBytes bounds the size of an /analyze request.
const maxUploadBytes = "10M"

type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Retriever Retriever
	// Advisor is nil when no language model is configured.
	Advisor Advisor
	Metrics *metrics.PrometheusExporter

	llmSemaphore *semaphore.Weighted
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, retriever Retriever, advisor Advisor, m *metrics.PrometheusExporter) *APIV1Service {
	maxConcurrent := profile.MaxConcurrentLLM
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &APIV1Service{
		Profile:      profile,
		Store:        store,
		Retriever:    retriever,
		Advisor:      advisor,
		Metrics:      m,
		llmSemaphore: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Register mounts the middleware stack and every route on e.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.Profile.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))
	e.Use(s.metricsMiddleware)

	e.GET("/", s.Hello)
	e.GET("/healthz", s.Healthz)
	if s.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	analyzeLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.analyzeRPS()),
			Burst:     int(s.analyzeRPS()) + 1,
			ExpiresIn: 3 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many analyze requests, slow down")
		},
	})
	e.POST("/analyze", s.Analyze, middleware.BodyLimit(maxUploadBytes), analyzeLimiter)
	e.POST("/suggest", s.Suggest)
	e.POST("/clarify-step", s.ClarifyStep)

	e.GET("/leaderboard", s.Leaderboard)
	e.GET("/achievements", s.ListAchievements)

	e.GET("/projects", s.ListProjects)
	e.POST("/projects", s.CreateProject)
	e.POST("/projects/:id/steps/:step", s.CompleteProjectStep)

	e.POST("/corpus/reload", s.ReloadCorpus)
}

func (s *APIV1Service) analyzeRPS() float64 {
	if s.Profile.AnalyzeRPS <= 0 {
		return 2
	}
	return s.Profile.AnalyzeRPS
}

func (s *APIV1Service) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		} else if err != nil {
			status = http.StatusInternalServerError
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		s.Metrics.RecordRequest(path, time.Since(start), status < http.StatusInternalServerError)

		if err != nil && status >= http.StatusInternalServerError {
			slog.Error("request failed",
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"method", c.Request().Method,
				"path", path,
				"status", status,
				"error", err,
			)
		}
		return err
	}
}

// acquireLLM bounds the number of concurrent language model calls.
func (s *APIV1Service) acquireLLM(ctx context.Context) (func(), error) {
	if err := s.llmSemaphore.Acquire(ctx, 1); err != nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "server busy").SetInternal(err)
	}
	return func() { s.llmSemaphore.Release(1) }, nil
}

func (s *APIV1Service) requireAdvisor() error {
	if s.Advisor == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are disabled")
	}
	return nil
}

func (s *APIV1Service) Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"Hello": "World"})
}

func (s *APIV1Service) Healthz(c echo.Context) error {
	resp := map[string]any{
		"status":     "ok",
		"ai_enabled": s.Advisor != nil,
	}
	if s.Retriever != nil {
		size, err := s.Retriever.Size(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "corpus unavailable").SetInternal(err)
		}
		resp["corpus_size"] = size
		resp["corpus_source"] = s.Retriever.Source()
	}
	return c.JSON(http.StatusOK, resp)
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/ai"
	"github.com/Try3D/Eunoia/ai/advisor"
	"github.com/Try3D/Eunoia/ai/core/embedding"
	"github.com/Try3D/Eunoia/ai/core/llm"
	"github.com/Try3D/Eunoia/ai/core/retrieval"
	"github.com/Try3D/Eunoia/ai/metrics"
	"github.com/Try3D/Eunoia/internal/profile"
	apiv1 "github.com/Try3D/Eunoia/server/router/api/v1"
	"github.com/Try3D/Eunoia/store"
)

const (
	embeddingCacheSize = 1024
	embeddingCacheTTL  = 30 * time.Minute
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	retriever  *retrieval.Retriever
	metrics    *metrics.PrometheusExporter
}

// NewServer wires the retrieval pipeline, the optional language model and the
// HTTP routes.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
		metrics: metrics.NewPrometheusExporter(metrics.DefaultConfig()),
	}

	aiConfig := ai.NewConfigFromProfile(profile)

	provider, err := embedding.NewProvider(&aiConfig.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding provider")
	}
	provider.WithMetrics(s.metrics)
	encoder := embedding.NewCachedEncoder(provider, embeddingCacheSize, embeddingCacheTTL, s.metrics)

	s.retriever, err = retrieval.NewRetriever(ctx, profile, store, encoder, s.metrics)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create retriever")
	}
	size, err := s.retriever.Size(ctx)
	if err != nil {
		slog.Warn("failed to read corpus size", "error", err)
	}
	slog.Info("retrieval ready",
		"source", s.retriever.Source(),
		"records", size,
		"embedding_model", provider.Model(),
		"dimensions", provider.Dimensions(),
	)

	var adv apiv1.Advisor
	if aiConfig.Enabled {
		if err := aiConfig.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid AI configuration")
		}
		svc, err := llm.NewService(&aiConfig.LLM)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create LLM service")
		}
		// Warm the connection in the background; a failed warmup only costs
		// latency on the first request.
		go func() {
			warmupCtx, warmupCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer warmupCancel()
			svc.Warmup(warmupCtx)
		}()
		adv = advisor.New(svc, aiConfig.LLM.Model, s.metrics)
		slog.Info("AI features enabled", "provider", aiConfig.LLM.Provider, "model", aiConfig.LLM.Model)
	} else {
		slog.Warn("AI features disabled, set EUNOIA_AI_LLM_API_KEY to enable /analyze and /clarify-step")
	}

	e := echo.New()
	e.Debug = profile.IsDev()
	e.HideBanner = true
	e.HidePort = true
	s.echoServer = e

	apiv1.NewAPIV1Service(profile, store, s.retriever, adv, s.metrics).Register(e)

	return s, nil
}

// Start begins serving in the background. It returns once the listener is
// bound so that bind failures surface to the caller.
func (s *Server) Start(_ context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, strconv.Itoa(s.Profile.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("server stopped properly")
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echoServer
}

func (s *Server) String() string {
	return fmt.Sprintf("eunoia server on %s:%d", s.Profile.Addr, s.Profile.Port)
}

// Package httpapi exposes ingestion and retrieval over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/usecase"
)

// Articles is the ingestion and retrieval surface of the pipeline.
type Articles interface {
	IngestBatch(ctx context.Context, articles []domain.RawArticle) usecase.BatchReceipt
	ListFiltered(ctx context.Context) ([]domain.PublicArticle, error)
	ListAllScored(ctx context.Context) ([]domain.ScoredArticle, error)
}

// CycleTrigger starts a poll cycle, or a single source run, on demand.
type CycleTrigger interface {
	RunNow(ctx context.Context) (usecase.CycleReport, error)
	RunSource(ctx context.Context, name string) (usecase.SourceOutcome, error)
}

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelHealth reports label model reachability.
type ModelHealth interface {
	Health(ctx context.Context) error
}

// SourceControl lists sources and toggles them at runtime.
type SourceControl interface {
	Descriptors() []domain.SourceDescriptor
	Active() []ports.Source
	SetEnabled(name string, enabled bool) error
}

// Deps wires the server to the use cases. Trigger, Health, Model and
// Sources are optional.
type Deps struct {
	Articles Articles
	Trigger  CycleTrigger
	Health   Pinger
	Model    ModelHealth
	Sources  SourceControl
	Logger   *slog.Logger
}

// Server is the echo based transport.
type Server struct {
	echo     *echo.Echo
	articles Articles
	trigger  CycleTrigger
	health   Pinger
	model    ModelHealth
	sources  SourceControl
	clean    sanitizer
	logger   *slog.Logger
}

// NewServer registers all routes.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		articles: deps.Articles,
		trigger:  deps.Trigger,
		health:   deps.Health,
		model:    deps.Model,
		sources:  deps.Sources,
		clean:    newSanitizer(),
		logger:   deps.Logger,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.LogAttrs(c.Request().Context(), slog.LevelDebug, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.POST("/ingest", s.ingest)
	e.GET("/retrieve", s.retrieve)
	e.GET("/articles", s.listArticles)
	e.POST("/fetch", s.fetch)
	e.GET("/sources", s.listSources)
	e.PUT("/sources/:name", s.toggleSource)
	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ingest(c echo.Context) error {
	var items []json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON array of articles")
	}

	var (
		rejected []rejectionDTO
		batch    = make([]domain.RawArticle, 0, len(items))
		origin   = make([]int, 0, len(items))
	)
	for i, msg := range items {
		article, verr := s.clean.decodeItem(i, msg)
		if verr != nil {
			rejected = append(rejected, toRejection(verr))
			continue
		}
		batch = append(batch, article)
		origin = append(origin, i)
	}

	// Accepted items are written even if the client goes away mid-batch.
	receipt := s.articles.IngestBatch(context.WithoutCancel(c.Request().Context()), batch)
	for _, verr := range receipt.Rejected {
		dto := toRejection(verr)
		dto.Index = origin[verr.Index]
		rejected = append(rejected, dto)
	}
	sort.Slice(rejected, func(i, j int) bool { return rejected[i].Index < rejected[j].Index })
	if rejected == nil {
		rejected = []rejectionDTO{}
	}

	return c.JSON(http.StatusOK, ingestResponse{
		Status:   "ok",
		BatchID:  receipt.ID,
		Received: len(items),
		Accepted: receipt.Accepted,
		Rejected: rejected,
	})
}

func (s *Server) retrieve(c echo.Context) error {
	articles, err := s.articles.ListFiltered(c.Request().Context())
	if err != nil {
		s.logger.Error("list filtered articles", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read articles")
	}
	out := make([]publicArticleDTO, len(articles))
	for i, a := range articles {
		out[i] = toPublicDTO(a)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listArticles(c echo.Context) error {
	articles, err := s.articles.ListAllScored(c.Request().Context())
	if err != nil {
		s.logger.Error("list scored articles", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read articles")
	}
	out := make([]scoredArticleDTO, len(articles))
	for i, a := range articles {
		out[i] = toScoredDTO(a)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) fetch(c echo.Context) error {
	if s.trigger == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "polling is not configured")
	}
	if name := c.QueryParam("source"); name != "" {
		return s.fetchSource(c, name)
	}
	report, err := s.trigger.RunNow(c.Request().Context())
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSchedulerStopped):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.logger.Error("manual poll cycle", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "poll cycle failed")
	}
	return c.JSON(http.StatusOK, toFetchResponse(report))
}

func (s *Server) fetchSource(c echo.Context, name string) error {
	outcome, err := s.trigger.RunSource(c.Request().Context(), name)
	switch {
	case errors.Is(err, domain.ErrUnknownSource):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCycleInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSchedulerStopped):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.logger.Error("manual source run", "source", name, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "source run failed")
	}
	return c.JSON(http.StatusOK, toSourceOutcomeDTO(outcome))
}

func (s *Server) listSources(c echo.Context) error {
	if s.sources == nil {
		return c.JSON(http.StatusOK, []sourceDTO{})
	}
	active := map[string]bool{}
	for _, src := range s.sources.Active() {
		active[src.Descriptor().Name] = true
	}
	descs := s.sources.Descriptors()
	out := make([]sourceDTO, len(descs))
	for i, d := range descs {
		out[i] = sourceDTO{Name: d.Name, Kind: string(d.Kind), URL: d.FeedURL, Enabled: active[d.Name]}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) toggleSource(c echo.Context) error {
	if s.sources == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sources are not configured")
	}
	var req toggleRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req.Enabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, `body must be {"enabled": true|false}`)
	}
	name := c.Param("name")
	if err := s.sources.SetEnabled(name, *req.Enabled); err != nil {
		if errors.Is(err, domain.ErrUnknownSource) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.logger.Info("source toggled", "source", name, "enabled", *req.Enabled)
	return c.JSON(http.StatusOK, map[string]any{"name": name, "enabled": *req.Enabled})
}

// healthz fails when the store is unreachable. A model outage only
// degrades it, since articles are still stored unscored.
func (s *Server) healthz(c echo.Context) error {
	ctx := c.Request().Context()
	if s.health != nil {
		if err := s.health.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "store unavailable", "error": err.Error()})
		}
	}
	if s.model != nil {
		if err := s.model.Health(ctx); err != nil {
			return c.JSON(http.StatusOK, map[string]string{"status": "degraded", "model": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsScanner/internal/config"
	"NewsScanner/internal/domain"
	"NewsScanner/internal/infrastructure/httpapi"
	"NewsScanner/internal/infrastructure/llm"
	"NewsScanner/internal/infrastructure/ml"
	"NewsScanner/internal/infrastructure/parser"
	"NewsScanner/internal/infrastructure/scheduler"
	"NewsScanner/internal/infrastructure/storage"
	"NewsScanner/internal/logging"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/scoring"
	"NewsScanner/internal/source"
	"NewsScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.SQLRepository
	registry *source.Registry
	pipeline *usecase.Pipeline
	poller   *usecase.Poller
	server   *httpapi.Server
}

// New builds the application. The label model itself is loaded on first use.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	labels := buildLabels(cfg.Scoring.Labels)
	model, err := buildModel(cfg, labels, baseLogger.With("component", "model"))
	if err != nil {
		return nil, err
	}
	engine, err := scoring.NewEngine(scoring.Options{
		Labels:    labels,
		HalfLife:  cfg.Scoring.HalfLife.Duration(),
		Threshold: cfg.Scoring.Threshold,
	}, model, baseLogger.With("component", "scoring"))
	if err != nil {
		return nil, fmt.Errorf("build scoring engine: %w", err)
	}

	registry, err := buildRegistry(cfg.Sources, baseLogger)
	if err != nil {
		return nil, err
	}

	driver, err := scheduler.NewCronScheduler(cfg.Scheduler.Spec(), cfg.Scheduler.Location(), baseLogger.With("component", "cron"))
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	store, err := storage.Open(ctx, storage.Dialect(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}

	pipeline, err := usecase.NewPipeline(usecase.PipelineDeps{
		Store:  store,
		Engine: engine,
		Logger: baseLogger.With("component", "pipeline"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	poller := usecase.NewPoller(driver, registry, pipeline, usecase.PollerOptions{
		MaxConcurrentSources: cfg.Scheduler.MaxConcurrentSources,
		SourceTimeout:        cfg.Scheduler.SourceTimeout.Duration(),
		Logger:               baseLogger.With("component", "poller"),
	})

	server := httpapi.NewServer(httpapi.Deps{
		Articles: pipeline,
		Trigger:  poller,
		Health:   store,
		Model:    modelHealth(cfg, baseLogger),
		Sources:  registry,
		Logger:   baseLogger.With("component", "http"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		registry: registry,
		pipeline: pipeline,
		poller:   poller,
		server:   server,
	}, nil
}

// Run starts polling and serving until ctx is cancelled, then shuts down
// within the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting news scanner",
		"sources", len(a.registry.Active()),
		"schedule", a.cfg.Scheduler.Spec(),
		"database", a.cfg.Database.Driver,
		"model", a.cfg.ML.Provider,
	)

	if err := a.poller.Start(ctx); err != nil {
		_ = a.store.Close()
		return fmt.Errorf("start poller: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start(a.cfg.HTTP.Addr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	return errors.Join(runErr, a.shutdown())
}

// PollOnce runs a single cycle outside the schedule.
func (a *Application) PollOnce(ctx context.Context) (usecase.CycleReport, error) {
	return a.poller.RunNow(ctx)
}

// PollSource runs one named source outside the schedule.
func (a *Application) PollSource(ctx context.Context, name string) (usecase.SourceOutcome, error) {
	return a.poller.RunSource(ctx, name)
}

// Articles exposes the read and ingest side of the pipeline.
func (a *Application) Articles() *usecase.Pipeline {
	return a.pipeline
}

// Close releases the article store. Only needed when Run is not used.
func (a *Application) Close() error {
	return a.store.Close()
}

func (a *Application) shutdown() error {
	timeout := a.cfg.Scheduler.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.logger.Info("shutting down")
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.poller.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop poller: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close article store: %w", err))
	}
	return errors.Join(errs...)
}

func buildLabels(cfgs []config.LabelConfig) []scoring.Label {
	labels := make([]scoring.Label, 0, len(cfgs))
	for _, l := range cfgs {
		labels = append(labels, scoring.Label{Name: l.Name, Hypothesis: l.Hypothesis, Weight: l.Weight})
	}
	return labels
}

// buildModel selects the provider eagerly but constructs it lazily.
func buildModel(cfg config.Config, labels []scoring.Label, logger *slog.Logger) (ports.LabelModel, error) {
	if len(labels) == 0 {
		labels = scoring.DefaultLabels()
	}

	var loader func() (ports.LabelModel, error)
	switch cfg.ML.Provider {
	case "", "keyword":
		loader = func() (ports.LabelModel, error) {
			return ml.NewKeywordModel(keywordIndex(cfg.Scoring.Labels, labels), fallbackCandidate(labels, cfg.ML.DefaultLabel))
		}
	case "http":
		loader = func() (ports.LabelModel, error) {
			return ml.NewClient(cfg.ML)
		}
	case "chatgpt":
		loader = func() (ports.LabelModel, error) {
			return llm.NewChatGPTClient(cfg.ChatGPT, cfg.ML)
		}
	default:
		return nil, fmt.Errorf("unknown ml provider %q", cfg.ML.Provider)
	}

	provider := cfg.ML.Provider
	return ml.NewLazy(func() (ports.LabelModel, error) {
		logger.Info("loading label model", "provider", provider)
		model, err := loader()
		if err != nil {
			logger.Error("label model unavailable", "provider", provider, "error", err)
			return nil, err
		}
		return model, nil
	}), nil
}

// modelHealth returns a readiness check for remote inference services.
// Local providers have nothing to check.
func modelHealth(cfg config.Config, logger *slog.Logger) httpapi.ModelHealth {
	if cfg.ML.Provider != "http" {
		return nil
	}
	client, err := ml.NewClient(cfg.ML)
	if err != nil {
		logger.Warn("model health check disabled", "error", err)
		return nil
	}
	return client
}

func keywordIndex(cfgs []config.LabelConfig, labels []scoring.Label) map[string][]string {
	byName := make(map[string][]string, len(cfgs))
	for _, l := range cfgs {
		byName[l.Name] = l.Keywords
	}
	index := make(map[string][]string, len(labels))
	for _, l := range labels {
		if words := byName[l.Name]; len(words) > 0 {
			index[l.Candidate()] = words
		}
	}
	return index
}

// fallbackCandidate resolves the label used when no keyword matches;
// the last declared label is used when name is unknown.
func fallbackCandidate(labels []scoring.Label, name string) string {
	for _, l := range labels {
		if l.Name == name {
			return l.Candidate()
		}
	}
	return labels[len(labels)-1].Candidate()
}

func buildRegistry(cfgs []config.SourceConfig, logger *slog.Logger) (*source.Registry, error) {
	registry := source.NewRegistry()
	for _, sc := range cfgs {
		src, err := buildSource(sc, logger)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		if sc.IsEnabled() {
			err = registry.Register(src)
		} else {
			err = registry.RegisterDisabled(src)
		}
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildSource(sc config.SourceConfig, logger *slog.Logger) (ports.Source, error) {
	policy, err := parser.ParseDatePolicy(sc.DatePolicy)
	if err != nil {
		return nil, err
	}
	opts := parser.Options{
		DatePolicy: policy,
		Logger:     logger.With("component", "source"),
	}

	switch domain.SourceKind(sc.Kind) {
	case "", domain.SourceKindRSS:
		return parser.NewFeedSource(sc.Name, sc.URL, opts), nil
	case domain.SourceKindHTML:
		return parser.NewHTMLSource(sc.Name, sc.URL, parser.Selectors{
			Item:       sc.Selectors.Item,
			Title:      sc.Selectors.Title,
			Link:       sc.Selectors.Link,
			Summary:    sc.Selectors.Summary,
			Date:       sc.Selectors.Date,
			DateLayout: sc.Selectors.DateLayout,
		}, opts)
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

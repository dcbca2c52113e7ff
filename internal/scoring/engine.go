package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// Options configures an Engine.
type Options struct {
	Labels    []Label
	HalfLife  time.Duration
	Threshold float64
}

// Engine scores raw articles through a label model.
type Engine struct {
	labels     []Label
	candidates []string
	halfLife   time.Duration
	threshold  float64
	model      ports.LabelModel
	logger     *slog.Logger
}

// NewEngine validates the label set and wires the model.
func NewEngine(opts Options, model ports.LabelModel, logger *slog.Logger) (*Engine, error) {
	if model == nil {
		return nil, errors.New("label model is not configured")
	}
	if len(opts.Labels) == 0 {
		opts.Labels = DefaultLabels()
	}
	if err := ValidateLabels(opts.Labels); err != nil {
		return nil, fmt.Errorf("validate labels: %w", err)
	}
	if opts.HalfLife <= 0 {
		opts.HalfLife = DefaultHalfLife
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	candidates := make([]string, len(opts.Labels))
	for i, l := range opts.Labels {
		candidates[i] = l.Candidate()
	}

	return &Engine{
		labels:     append([]Label(nil), opts.Labels...),
		candidates: candidates,
		halfLife:   opts.HalfLife,
		threshold:  opts.Threshold,
		model:      model,
		logger:     logger,
	}, nil
}

// Score enriches raw using the title only and the given evaluation time.
// On model failure the article is returned unscored together with a
// *domain.ClassificationError; it is still meant to be persisted.
func (e *Engine) Score(ctx context.Context, raw domain.RawArticle, now time.Time) (domain.ScoredArticle, error) {
	scored := domain.ScoredArticle{RawArticle: raw}

	dist, err := e.model.Classify(ctx, raw.Title, e.candidates)
	if err != nil {
		return scored, &domain.ClassificationError{ArticleID: raw.ID, Err: err}
	}

	res, err := Evaluate(e.labels, dist, raw.PublishedAt, now, e.halfLife, e.threshold)
	if err != nil {
		return scored, &domain.ClassificationError{ArticleID: raw.ID, Err: err}
	}

	scored.ImportanceScore = &res.Importance
	scored.RecencyScore = &res.Recency
	scored.FinalScore = &res.Final
	scored.Category = &res.Category
	scored.IsFiltered = res.Filtered

	status := "FAIL"
	if res.Filtered {
		status = "PASS"
	}
	e.logger.Debug("article scored",
		"source", raw.Source,
		"article_id", raw.ID,
		"status", status,
		"title", truncate(raw.Title, 60),
		"importance", res.Importance,
		"recency", res.Recency,
		"final", res.Final,
		"category", res.Category,
	)

	return scored, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/metrics"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/scoring"
)

// Ingestion paths reported in metrics.
const (
	pathPoll   = "poll"
	pathIngest = "ingest"
)

// PipelineDeps wires the driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Store  ports.ArticleStore
	Engine *scoring.Engine
	Logger *slog.Logger
	Now    func() time.Time
}

// Pipeline implements fetch, score and persist for polled sources and
// externally submitted batches, and the read side over the store.
type Pipeline struct {
	store  ports.ArticleStore
	engine *scoring.Engine
	logger *slog.Logger
	now    func() time.Time
}

// SourceReport summarizes one source run.
type SourceReport struct {
	Source   string
	Fetched  int
	Stored   int
	Unscored int
	Failed   []*domain.PersistenceError
}

// BatchReceipt acknowledges an externally submitted batch.
type BatchReceipt struct {
	ID       string
	Received int
	Accepted int
	Rejected []*domain.ValidationError
	Failed   []*domain.PersistenceError
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, errors.New("article store is not configured")
	}
	if deps.Engine == nil {
		return nil, errors.New("scoring engine is not configured")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{
		store:  deps.Store,
		engine: deps.Engine,
		logger: deps.Logger,
		now:    deps.Now,
	}, nil
}

// IngestSource fetches one source and stores every returned article.
// A *domain.FetchError is returned when the source could not be read;
// in that case nothing is written for it.
func (p *Pipeline) IngestSource(ctx context.Context, src ports.Source) (SourceReport, error) {
	desc := src.Descriptor()
	report := SourceReport{Source: desc.Name}
	logger := p.logger.With("source", desc.Name)

	articles, err := src.Fetch(ctx)
	metrics.RecordFetch(desc.Name, err)
	if err != nil {
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			err = &domain.FetchError{Source: desc.Name, Err: err}
		}
		logger.Warn("fetch failed", "error", err)
		return report, err
	}
	report.Fetched = len(articles)

	for _, raw := range articles {
		if raw.Source == "" {
			raw.Source = desc.Name
		}
		scored, perr := p.process(ctx, raw, pathPoll, logger)
		if perr != nil {
			report.Failed = append(report.Failed, perr)
			continue
		}
		report.Stored++
		if !scored.Scored() {
			report.Unscored++
		}
	}

	logger.Info("source ingested",
		"count", report.Fetched,
		"stored", report.Stored,
		"unscored", report.Unscored,
		"failed", len(report.Failed),
	)
	return report, nil
}

// IngestBatch validates and stores externally submitted articles. Invalid
// items are rejected individually and never affect their siblings.
func (p *Pipeline) IngestBatch(ctx context.Context, articles []domain.RawArticle) BatchReceipt {
	receipt := BatchReceipt{ID: uuid.NewString(), Received: len(articles)}
	logger := p.logger.With("batch_id", receipt.ID)

	for i, raw := range articles {
		if err := raw.Validate(); err != nil {
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				verr = &domain.ValidationError{ID: raw.ID, Reason: err.Error()}
			}
			verr.Index = i
			receipt.Rejected = append(receipt.Rejected, verr)
			metrics.RecordError(metrics.KindValidation)
			logger.Warn("article rejected", "index", i, "error", verr)
			continue
		}
		receipt.Accepted++

		if _, perr := p.process(ctx, raw, pathIngest, logger); perr != nil {
			receipt.Failed = append(receipt.Failed, perr)
		}
	}

	logger.Info("batch ingested",
		"received", receipt.Received,
		"accepted", receipt.Accepted,
		"rejected", len(receipt.Rejected),
		"failed", len(receipt.Failed),
	)
	return receipt
}

// process scores and upserts one article. Classification failures are
// logged and the article is stored unscored.
func (p *Pipeline) process(ctx context.Context, raw domain.RawArticle, path string, logger *slog.Logger) (domain.ScoredArticle, *domain.PersistenceError) {
	scored, err := p.engine.Score(ctx, raw, p.now())
	outcome := "unfiltered"
	if err != nil {
		outcome = "unscored"
		metrics.RecordError(metrics.KindClassification)
		logger.Warn("classification failed", "article_id", raw.ID, "error", err)
	} else if scored.IsFiltered {
		outcome = "filtered"
	}

	scored.IngestedAt = p.now().UTC()
	if err := p.store.Upsert(ctx, scored); err != nil {
		perr := &domain.PersistenceError{Source: raw.Source, ArticleID: raw.ID, Err: err}
		metrics.RecordError(metrics.KindPersistence)
		metrics.RecordArticle(path, "failed")
		logger.Error("persist failed", "article_id", raw.ID, "error", err)
		return scored, perr
	}

	metrics.RecordArticle(path, outcome)
	return scored, nil
}

// ListFiltered returns filtered articles in their public shape, ordered by
// final score descending.
func (p *Pipeline) ListFiltered(ctx context.Context) ([]domain.PublicArticle, error) {
	out := []domain.PublicArticle{}
	for article, err := range p.store.Scan(ctx, domain.ScanFilter{FilteredOnly: true}) {
		if err != nil {
			return nil, fmt.Errorf("scan filtered articles: %w", err)
		}
		out = append(out, article.Public())
	}
	return out, nil
}

// ListAllScored returns every stored article with all enrichment fields.
// Unscored articles are included and ordered last.
func (p *Pipeline) ListAllScored(ctx context.Context) ([]domain.ScoredArticle, error) {
	out := []domain.ScoredArticle{}
	for article, err := range p.store.Scan(ctx, domain.ScanFilter{}) {
		if err != nil {
			return nil, fmt.Errorf("scan articles: %w", err)
		}
		out = append(out, article)
	}
	return out, nil
}

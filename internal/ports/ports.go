package ports

import (
	"context"
	"iter"
	"time"

	"NewsScanner/internal/domain"
)

// Source pulls the current snapshot window of one upstream.
type Source interface {
	Descriptor() domain.SourceDescriptor
	Fetch(ctx context.Context) ([]domain.RawArticle, error)
}

// ArticleStore persists scored articles keyed by (source, id).
type ArticleStore interface {
	Upsert(ctx context.Context, article domain.ScoredArticle) error
	Scan(ctx context.Context, filter domain.ScanFilter) iter.Seq2[domain.ScoredArticle, error]
}

// Distribution maps candidate labels to probabilities summing to 1.
type Distribution map[string]float64

// LabelModel classifies text over a fixed set of candidate labels.
type LabelModel interface {
	Classify(ctx context.Context, text string, labels []string) (Distribution, error)
}

// Scheduler controls when poll cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/scoring"
)

const (
	hypCyber   = "cybersecurity incident or data breach"
	hypOutage  = "system outage or service disruption"
	hypRelease = "software release or patch"
	hypGeneral = "general technology news"
)

var evalTime = time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu      sync.Mutex
	rows    map[string]domain.ScoredArticle
	failFor map[string]bool
	upserts int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.ScoredArticle{}, failFor: map[string]bool{}}
}

func (m *memStore) Upsert(_ context.Context, a domain.ScoredArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failFor[a.ID] {
		return errors.New("disk full")
	}
	m.rows[a.Source+"/"+a.ID] = a
	return nil
}

func (m *memStore) Scan(_ context.Context, filter domain.ScanFilter) iter.Seq2[domain.ScoredArticle, error] {
	return func(yield func(domain.ScoredArticle, error) bool) {
		m.mu.Lock()
		rows := make([]domain.ScoredArticle, 0, len(m.rows))
		for _, a := range m.rows {
			if filter.FilteredOnly && !a.IsFiltered {
				continue
			}
			rows = append(rows, a)
		}
		m.mu.Unlock()

		slices.SortFunc(rows, func(a, b domain.ScoredArticle) int {
			switch {
			case a.FinalScore == nil && b.FinalScore != nil:
				return 1
			case a.FinalScore != nil && b.FinalScore == nil:
				return -1
			case a.FinalScore != nil && b.FinalScore != nil && *a.FinalScore != *b.FinalScore:
				return cmp.Compare(*b.FinalScore, *a.FinalScore)
			}
			return cmp.Or(
				b.PublishedAt.Compare(a.PublishedAt),
				cmp.Compare(a.Source, b.Source),
				cmp.Compare(a.ID, b.ID),
			)
		})
		for _, a := range rows {
			if !yield(a, nil) {
				return
			}
		}
	}
}

func (m *memStore) get(source, id string) (domain.ScoredArticle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[source+"/"+id]
	return a, ok
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// titleModel answers by title; unknown titles are general news.
type titleModel struct {
	byTitle map[string]ports.Distribution
	failOn  map[string]bool
}

func (t titleModel) Classify(_ context.Context, text string, _ []string) (ports.Distribution, error) {
	if t.failOn[text] {
		return nil, context.DeadlineExceeded
	}
	if d, ok := t.byTitle[text]; ok {
		return d, nil
	}
	return ports.Distribution{hypGeneral: 1}, nil
}

type fakeSource struct {
	name     string
	articles []domain.RawArticle
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeSource) Descriptor() domain.SourceDescriptor {
	return domain.SourceDescriptor{Name: f.name, FeedURL: "https://example.test/" + f.name, Kind: domain.SourceKindRSS}
}

func (f *fakeSource) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &domain.FetchError{Source: f.name, Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, &domain.FetchError{Source: f.name, Err: f.err}
	}
	return f.articles, nil
}

type sourceList []ports.Source

func (s sourceList) Active() []ports.Source { return s }

func (s sourceList) Resolve(name string) (ports.Source, error) {
	for _, src := range s {
		if src.Descriptor().Name == name {
			return src, nil
		}
	}
	return nil, fmt.Errorf("source %s: %w", name, domain.ErrUnknownSource)
}

func newTestPipeline(t *testing.T, store *memStore, model ports.LabelModel) *Pipeline {
	t.Helper()
	engine, err := scoring.NewEngine(scoring.Options{Threshold: scoring.DefaultThreshold}, model, nil)
	require.NoError(t, err)
	p, err := NewPipeline(PipelineDeps{
		Store:  store,
		Engine: engine,
		Now:    func() time.Time { return evalTime },
	})
	require.NoError(t, err)
	return p
}

func raw(source, id, title string, age time.Duration) domain.RawArticle {
	return domain.RawArticle{
		ID:          id,
		Source:      source,
		Title:       title,
		Body:        "body of " + id,
		PublishedAt: evalTime.Add(-age),
	}
}

package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

type stubModel struct {
	dist  ports.Distribution
	err   error
	texts []string
}

func (s *stubModel) Classify(_ context.Context, text string, _ []string) (ports.Distribution, error) {
	s.texts = append(s.texts, text)
	return s.dist, s.err
}

func TestEngineScoreUsesTitleOnly(t *testing.T) {
	t.Parallel()

	model := &stubModel{dist: ports.Distribution{
		"cybersecurity incident or data breach": 0.9,
		"general technology news":               0.1,
	}}
	engine, err := NewEngine(Options{Threshold: DefaultThreshold}, model, nil)
	require.NoError(t, err)

	now := time.Date(2025, time.May, 5, 8, 0, 0, 0, time.UTC)
	raw := domain.RawArticle{
		ID:          "1",
		Source:      "the-hacker-news",
		Title:       "Ransomware gang leaks hospital data",
		Body:        "long body that must never reach the model",
		PublishedAt: now,
	}

	scored, err := engine.Score(context.Background(), raw, now)
	require.NoError(t, err)
	require.True(t, scored.Scored())
	assert.Equal(t, []string{raw.Title}, model.texts)
	assert.InDelta(t, 0.92, *scored.ImportanceScore, 1e-12)
	assert.Equal(t, 1.0, *scored.RecencyScore)
	assert.Equal(t, *scored.ImportanceScore**scored.RecencyScore, *scored.FinalScore)
	assert.Equal(t, "cybersecurity", *scored.Category)
	assert.True(t, scored.IsFiltered)
}

func TestEngineScoreModelFailure(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(Options{Threshold: DefaultThreshold}, &stubModel{err: context.DeadlineExceeded}, nil)
	require.NoError(t, err)

	raw := domain.RawArticle{ID: "2", Source: "s", Title: "t", PublishedAt: time.Now()}
	scored, err := engine.Score(context.Background(), raw, time.Now())

	var cErr *domain.ClassificationError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "2", cErr.ArticleID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, raw, scored.RawArticle)
	assert.Nil(t, scored.ImportanceScore)
	assert.Nil(t, scored.RecencyScore)
	assert.Nil(t, scored.FinalScore)
	assert.Nil(t, scored.Category)
	assert.False(t, scored.IsFiltered)
}

func TestEngineScoreMalformedDistribution(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(Options{}, &stubModel{dist: ports.Distribution{}}, nil)
	require.NoError(t, err)

	scored, err := engine.Score(context.Background(), domain.RawArticle{ID: "3", Title: "x"}, time.Now())
	var cErr *domain.ClassificationError
	assert.True(t, errors.As(err, &cErr))
	assert.False(t, scored.Scored())
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(Options{}, nil, nil)
	assert.Error(t, err)

	_, err = NewEngine(Options{Labels: []Label{{Name: "x", Weight: 2}}}, &stubModel{}, nil)
	assert.Error(t, err)
}

func TestEngineDefaultOptionsApplyThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.May, 5, 8, 0, 0, 0, time.UTC)
	general := &stubModel{dist: ports.Distribution{"general technology news": 1}}
	engine, err := NewEngine(Options{}, general, nil)
	require.NoError(t, err)

	scored, err := engine.Score(context.Background(), domain.RawArticle{ID: "g", Source: "s", Title: "Laptop review", PublishedAt: now}, now)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, *scored.ImportanceScore, 1e-9)
	assert.False(t, scored.IsFiltered)

	breach := &stubModel{dist: ports.Distribution{"cybersecurity incident or data breach": 1}}
	engine, err = NewEngine(Options{}, breach, nil)
	require.NoError(t, err)

	scored, err = engine.Score(context.Background(), domain.RawArticle{ID: "b", Source: "s", Title: "Breach", PublishedAt: now}, now)
	require.NoError(t, err)
	assert.True(t, scored.IsFiltered)
}

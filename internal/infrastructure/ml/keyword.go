package ml

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"NewsScanner/internal/ports"
)

var wordExpr = regexp.MustCompile(`[\p{L}\p{N}]+(?:-[\p{L}\p{N}]+)*`)

// KeywordModel is an offline label model: each candidate gets mass proportional
// to how many of its keywords occur in the text. Text without any hit puts all
// mass on the fallback candidate.
type KeywordModel struct {
	keywords map[string][]string
	fallback string
}

var _ ports.LabelModel = (*KeywordModel)(nil)

// NewKeywordModel maps candidate label texts to lowercase keywords.
func NewKeywordModel(keywords map[string][]string, fallback string) (*KeywordModel, error) {
	if fallback == "" {
		return nil, errors.New("fallback label is empty")
	}

	normalized := make(map[string][]string, len(keywords))
	for candidate, words := range keywords {
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				normalized[candidate] = append(normalized[candidate], w)
			}
		}
	}
	return &KeywordModel{keywords: normalized, fallback: fallback}, nil
}

// Classify never calls out and never fails for known candidates.
func (m *KeywordModel) Classify(ctx context.Context, text string, labels []string) (ports.Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := map[string]struct{}{}
	for _, tok := range wordExpr.FindAllString(strings.ToLower(text), -1) {
		tokens[tok] = struct{}{}
	}

	hits := make(map[string]float64, len(labels))
	total := 0.0
	for _, label := range labels {
		for _, kw := range m.keywords[label] {
			if _, ok := tokens[kw]; ok {
				hits[label]++
				total++
			}
		}
	}

	dist := make(ports.Distribution, len(labels))
	for _, label := range labels {
		dist[label] = 0
	}

	if total == 0 {
		if _, ok := dist[m.fallback]; !ok {
			return nil, errors.New("fallback label is not among the candidates")
		}
		dist[m.fallback] = 1
		return dist, nil
	}

	for label, n := range hits {
		dist[label] = n / total
	}
	return dist, nil
}

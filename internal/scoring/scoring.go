// Package scoring turns a label distribution and a publish time into the
// importance, recency and final scores that rank the feed.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"NewsScanner/internal/ports"
)

const (
	// DefaultHalfLife is the age at which recency drops to 0.5.
	DefaultHalfLife = 48 * time.Hour
	// DefaultThreshold is the strict importance cutoff of the filtered feed.
	DefaultThreshold = 0.5

	massTolerance = 1e-9
)

// Label is one category of the fixed label set.
// Hypothesis is the text handed to the label model; Name is what gets stored.
type Label struct {
	Name       string
	Hypothesis string
	Weight     float64
}

// Candidate returns the text the label model is asked about.
func (l Label) Candidate() string {
	if l.Hypothesis != "" {
		return l.Hypothesis
	}
	return l.Name
}

// DefaultLabels reflects relevance to IT operations staff.
func DefaultLabels() []Label {
	return []Label{
		{Name: "cybersecurity", Hypothesis: "cybersecurity incident or data breach", Weight: 1.0},
		{Name: "outage", Hypothesis: "system outage or service disruption", Weight: 1.0},
		{Name: "bug", Hypothesis: "critical software bug or vulnerability", Weight: 0.9},
		{Name: "release", Hypothesis: "software release or patch", Weight: 0.5},
		{Name: "general", Hypothesis: "general technology news", Weight: 0.2},
	}
}

// Result holds the enrichment computed for one article.
type Result struct {
	Importance float64
	Recency    float64
	Final      float64
	Category   string
	Filtered   bool
}

// ValidateLabels checks that a label set can be scored against.
func ValidateLabels(labels []Label) error {
	if len(labels) == 0 {
		return errors.New("label set is empty")
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l.Name == "" {
			return errors.New("label name is empty")
		}
		if l.Weight < 0 || l.Weight > 1 || math.IsNaN(l.Weight) {
			return fmt.Errorf("label %s: weight %v outside [0,1]", l.Name, l.Weight)
		}
		if _, ok := seen[l.Candidate()]; ok {
			return fmt.Errorf("label %s: duplicate candidate %q", l.Name, l.Candidate())
		}
		seen[l.Candidate()] = struct{}{}
	}
	return nil
}

// Importance returns the weighted label mass and the weighted top label.
// Ties on the weighted score go to the label declared first.
func Importance(labels []Label, dist ports.Distribution) (float64, string, error) {
	if len(labels) == 0 {
		return 0, "", errors.New("label set is empty")
	}

	total := 0.0
	for _, l := range labels {
		p := dist[l.Candidate()]
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return 0, "", fmt.Errorf("label %s: invalid probability %v", l.Name, p)
		}
		total += p
	}
	if total <= 0 {
		return 0, "", errors.New("distribution has no mass over the label set")
	}

	scale := 1.0
	if math.Abs(total-1) > massTolerance {
		scale = 1 / total
	}

	var (
		importance float64
		category   string
		best       = math.Inf(-1)
		minW       = math.Inf(1)
		maxW       = math.Inf(-1)
	)
	for _, l := range labels {
		weighted := dist[l.Candidate()] * scale * l.Weight
		importance += weighted
		if weighted > best {
			best = weighted
			category = l.Name
		}
		minW = math.Min(minW, l.Weight)
		maxW = math.Max(maxW, l.Weight)
	}

	return math.Min(math.Max(importance, minW), maxW), category, nil
}

// Recency decays exponentially with the given half-life.
// Future-dated articles are clamped to an age of zero.
func Recency(publishedAt, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	hours := now.Sub(publishedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp2(-hours / halfLife.Hours())
}

// Evaluate combines importance, recency and the filter decision.
func Evaluate(labels []Label, dist ports.Distribution, publishedAt, now time.Time, halfLife time.Duration, threshold float64) (Result, error) {
	importance, category, err := Importance(labels, dist)
	if err != nil {
		return Result{}, err
	}
	recency := Recency(publishedAt, now, halfLife)
	return Result{
		Importance: importance,
		Recency:    recency,
		Final:      importance * recency,
		Category:   category,
		Filtered:   importance > threshold,
	}, nil
}

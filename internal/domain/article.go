package domain

import (
	"strings"
	"time"
)

// RawArticle is an unprocessed news item produced by a source or submitted externally.
type RawArticle struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// Validate rejects items that cannot reach the scoring engine.
func (a RawArticle) Validate() error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return &ValidationError{ID: a.ID, Field: "id", Reason: "must not be empty"}
	case strings.TrimSpace(a.Source) == "":
		return &ValidationError{ID: a.ID, Field: "source", Reason: "must not be empty"}
	case strings.TrimSpace(a.Title) == "":
		return &ValidationError{ID: a.ID, Field: "title", Reason: "must not be empty"}
	case a.PublishedAt.IsZero():
		return &ValidationError{ID: a.ID, Field: "published_at", Reason: "must be set"}
	}
	return nil
}

// ScoredArticle is a RawArticle enriched at ingestion time.
// Score fields are nil when classification failed.
type ScoredArticle struct {
	RawArticle
	ImportanceScore *float64  `json:"importance_score"`
	RecencyScore    *float64  `json:"recency_score"`
	FinalScore      *float64  `json:"final_score"`
	Category        *string   `json:"category"`
	IsFiltered      bool      `json:"is_filtered"`
	IngestedAt      time.Time `json:"ingested_at"`
}

// Scored reports whether the enrichment fields are present.
func (a ScoredArticle) Scored() bool {
	return a.ImportanceScore != nil && a.RecencyScore != nil && a.FinalScore != nil
}

// Public projects the article to the shape exposed by the filtered feed.
func (a ScoredArticle) Public() PublicArticle {
	return PublicArticle{
		ID:          a.ID,
		Source:      a.Source,
		Title:       a.Title,
		Body:        a.Body,
		PublishedAt: a.PublishedAt,
	}
}

// PublicArticle hides every enrichment field.
type PublicArticle struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// SourceKind enumerates the supported adapter variants.
type SourceKind string

const (
	SourceKindRSS  SourceKind = "rss"
	SourceKindHTML SourceKind = "html"
)

// SourceDescriptor is the static configuration of one upstream.
type SourceDescriptor struct {
	Name    string
	FeedURL string
	Kind    SourceKind
}

// ScanFilter narrows an article store scan.
type ScanFilter struct {
	FilteredOnly bool
}

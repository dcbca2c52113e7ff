package httpapi

import (
	"encoding/json"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/usecase"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type ingestItem struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
}

type rejectionDTO struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ingestResponse struct {
	Status   string         `json:"status"`
	BatchID  string         `json:"batch_id"`
	Received int            `json:"received"`
	Accepted int            `json:"accepted"`
	Rejected []rejectionDTO `json:"rejected"`
}

type publicArticleDTO struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

type scoredArticleDTO struct {
	publicArticleDTO
	ImportanceScore *float64  `json:"importance_score"`
	RecencyScore    *float64  `json:"recency_score"`
	FinalScore      *float64  `json:"final_score"`
	Category        *string   `json:"category"`
	IsFiltered      bool      `json:"is_filtered"`
	IngestedAt      time.Time `json:"ingested_at"`
}

type sourceOutcomeDTO struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	Stored   int    `json:"stored"`
	Unscored int    `json:"unscored"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

type sourceDTO struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type fetchResponse struct {
	CycleID  string             `json:"cycle_id"`
	Duration string             `json:"duration"`
	Sources  []sourceOutcomeDTO `json:"sources"`
}

// sanitizer removes all markup from submitted text.
type sanitizer struct {
	policy *bluemonday.Policy
}

func newSanitizer() sanitizer {
	return sanitizer{policy: bluemonday.StrictPolicy()}
}

func (s sanitizer) text(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}

// decodeItem turns one submitted element into a raw article. Structural
// problems are reported as validation errors for that element only.
func (s sanitizer) decodeItem(index int, msg json.RawMessage) (domain.RawArticle, *domain.ValidationError) {
	var item ingestItem
	if err := json.Unmarshal(msg, &item); err != nil {
		return domain.RawArticle{}, &domain.ValidationError{Index: index, Field: "item", Reason: "is not a valid article object"}
	}

	article := domain.RawArticle{
		ID:     strings.TrimSpace(item.ID),
		Source: strings.TrimSpace(item.Source),
		Title:  s.text(item.Title),
		Body:   s.text(item.Body),
	}

	raw := strings.TrimSpace(item.PublishedAt)
	if raw == "" {
		return article, nil
	}
	ts, ok := parseTimestamp(raw)
	if !ok {
		return article, &domain.ValidationError{Index: index, ID: article.ID, Field: "published_at", Reason: "is not a recognised timestamp"}
	}
	article.PublishedAt = ts
	return article, nil
}

// parseTimestamp accepts RFC 3339 and naive ISO 8601 forms; naive values are UTC.
func parseTimestamp(v string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func toRejection(v *domain.ValidationError) rejectionDTO {
	return rejectionDTO{Index: v.Index, ID: v.ID, Field: v.Field, Reason: v.Reason}
}

func toPublicDTO(a domain.PublicArticle) publicArticleDTO {
	return publicArticleDTO{
		ID:          a.ID,
		Source:      a.Source,
		Title:       a.Title,
		Body:        a.Body,
		PublishedAt: a.PublishedAt.UTC(),
	}
}

func toScoredDTO(a domain.ScoredArticle) scoredArticleDTO {
	return scoredArticleDTO{
		publicArticleDTO: toPublicDTO(a.Public()),
		ImportanceScore:  a.ImportanceScore,
		RecencyScore:     a.RecencyScore,
		FinalScore:       a.FinalScore,
		Category:         a.Category,
		IsFiltered:       a.IsFiltered,
		IngestedAt:       a.IngestedAt.UTC(),
	}
}

func toFetchResponse(r usecase.CycleReport) fetchResponse {
	out := fetchResponse{
		CycleID:  r.ID,
		Duration: r.Duration.String(),
		Sources:  make([]sourceOutcomeDTO, 0, len(r.Sources)),
	}
	for _, o := range r.Sources {
		out.Sources = append(out.Sources, toSourceOutcomeDTO(o))
	}
	return out
}

func toSourceOutcomeDTO(o usecase.SourceOutcome) sourceOutcomeDTO {
	dto := sourceOutcomeDTO{
		Source:   o.Report.Source,
		Fetched:  o.Report.Fetched,
		Stored:   o.Report.Stored,
		Unscored: o.Report.Unscored,
		Failed:   len(o.Report.Failed),
	}
	if o.Err != nil {
		dto.Error = o.Err.Error()
	}
	return dto
}

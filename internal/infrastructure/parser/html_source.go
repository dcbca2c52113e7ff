package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// Selectors locate article fields on a listing page.
type Selectors struct {
	Item       string
	Title      string
	Link       string
	Summary    string
	Date       string
	DateLayout string
}

func (s Selectors) validate() error {
	if s.Item == "" || s.Title == "" {
		return errors.New("item and title selectors are required")
	}
	return nil
}

// HTMLSource scrapes a news listing page for upstreams that publish no feed.
type HTMLSource struct {
	name      string
	pageURL   string
	selectors Selectors
	opts      Options
}

var _ ports.Source = (*HTMLSource)(nil)

// NewHTMLSource wires a listing page with its selectors.
func NewHTMLSource(name, pageURL string, selectors Selectors, opts Options) (*HTMLSource, error) {
	if err := selectors.validate(); err != nil {
		return nil, fmt.Errorf("source %s: %w", name, err)
	}
	if selectors.Link == "" {
		selectors.Link = "a[href]"
	}
	if selectors.DateLayout == "" {
		selectors.DateLayout = time.RFC3339
	}

	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With("source", name)
	return &HTMLSource{name: name, pageURL: pageURL, selectors: selectors, opts: opts}, nil
}

// Descriptor identifies the upstream.
func (h *HTMLSource) Descriptor() domain.SourceDescriptor {
	return domain.SourceDescriptor{Name: h.name, FeedURL: h.pageURL, Kind: domain.SourceKindHTML}
}

// Fetch walks the listing page and returns every well-formed item on it.
func (h *HTMLSource) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	base, err := url.Parse(h.pageURL)
	if err != nil {
		return nil, &domain.FetchError{Source: h.name, Err: fmt.Errorf("invalid page url %s: %w", h.pageURL, err)}
	}

	doc, err := h.fetchDocument(ctx)
	if err != nil {
		return nil, &domain.FetchError{Source: h.name, Err: err}
	}

	now := h.opts.Now()
	seen := map[string]struct{}{}
	var results []domain.RawArticle

	doc.Find(h.selectors.Item).Each(func(_ int, item *goquery.Selection) {
		article, ok := h.parseEntry(item, base, now)
		if !ok {
			return
		}
		if _, dup := seen[article.ID]; dup {
			return
		}
		seen[article.ID] = struct{}{}
		results = append(results, article)
	})

	h.opts.Logger.Debug("listing scraped", "articles", len(results))
	return results, nil
}

func (h *HTMLSource) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	body, err := fetchBody(ctx, h.opts.Client, h.pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (h *HTMLSource) parseEntry(item *goquery.Selection, base *url.URL, now time.Time) (domain.RawArticle, bool) {
	title := strings.Join(strings.Fields(item.Find(h.selectors.Title).First().Text()), " ")
	if title == "" {
		return domain.RawArticle{}, false
	}

	var link string
	if href, ok := item.Find(h.selectors.Link).First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			link = base.ResolveReference(ref).String()
		}
	}

	var summary string
	if h.selectors.Summary != "" {
		if inner, err := item.Find(h.selectors.Summary).First().Html(); err == nil {
			summary = StripMarkup(inner)
		}
	}

	var parsed *time.Time
	if h.selectors.Date != "" {
		sel := item.Find(h.selectors.Date).First()
		raw, ok := sel.Attr("datetime")
		if !ok {
			raw = sel.Text()
		}
		if t, err := time.Parse(h.selectors.DateLayout, strings.TrimSpace(raw)); err == nil {
			parsed = &t
		}
	}

	publishedAt, ok := resolveDate(h.opts.DatePolicy, now, parsed)
	if !ok {
		h.opts.Logger.Warn("skipping entry without publish date", "title", title)
		return domain.RawArticle{}, false
	}

	return domain.RawArticle{
		ID:          EntryID(link, title, link),
		Source:      h.name,
		Title:       title,
		Body:        summary,
		PublishedAt: publishedAt,
	}, true
}

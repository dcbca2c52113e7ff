package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// Options carries the collaborators shared by every feed-based source.
type Options struct {
	Client     *http.Client
	DatePolicy DatePolicy
	Logger     *slog.Logger
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	o.Client = defaultClient(o.Client)
	if o.DatePolicy == "" {
		o.DatePolicy = DatePolicyNow
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FeedSource reads an RSS, Atom or JSON feed. The feed is a snapshot window:
// entries that rotate out between two polls are never seen.
type FeedSource struct {
	name    string
	feedURL string
	opts    Options
}

var _ ports.Source = (*FeedSource)(nil)

// NewFeedSource builds a feed variant; only name and URL differ between upstreams.
func NewFeedSource(name, feedURL string, opts Options) *FeedSource {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With("source", name)
	return &FeedSource{name: name, feedURL: feedURL, opts: opts}
}

// Descriptor identifies the upstream.
func (s *FeedSource) Descriptor() domain.SourceDescriptor {
	return domain.SourceDescriptor{Name: s.name, FeedURL: s.feedURL, Kind: domain.SourceKindRSS}
}

// Fetch downloads and parses the feed. It either returns well-formed articles or a *domain.FetchError.
func (s *FeedSource) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	body, err := fetchBody(ctx, s.opts.Client, s.feedURL)
	if err != nil {
		return nil, &domain.FetchError{Source: s.name, Err: err}
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, &domain.FetchError{Source: s.name, Err: fmt.Errorf("parse feed: %w", err)}
	}

	now := s.opts.Now()
	articles := make([]domain.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		article, ok := s.toArticle(item, now)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	s.opts.Logger.Debug("feed fetched", "entries", len(feed.Items), "articles", len(articles))
	return articles, nil
}

func (s *FeedSource) toArticle(item *gofeed.Item, now time.Time) (domain.RawArticle, bool) {
	title := StripMarkup(item.Title)
	if title == "" {
		s.opts.Logger.Warn("skipping entry without title", "link", item.Link)
		return domain.RawArticle{}, false
	}

	publishedAt, ok := resolveDate(s.opts.DatePolicy, now, item.PublishedParsed, item.UpdatedParsed)
	if !ok {
		s.opts.Logger.Warn("skipping entry without publish date", "title", title)
		return domain.RawArticle{}, false
	}

	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	return domain.RawArticle{
		ID:          EntryID(item.GUID, title, item.Link),
		Source:      s.name,
		Title:       title,
		Body:        StripMarkup(summary),
		PublishedAt: publishedAt,
	}, true
}

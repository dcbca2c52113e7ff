package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsScanner/internal/domain"
)

const listingPage = `
<html><body>
<ul class="news">
  <li class="entry">
    <a class="headline" href="/2025/11/08/fresh">  Fresh <em>Kernel</em> Patch </a>
    <time datetime="2025-11-08T09:30:00Z">8 Nov</time>
    <div class="teaser"><p>Fixes a <b>privilege</b> escalation.</p></div>
  </li>
  <li class="entry">
    <a class="headline" href="https://other.example.org/old">Old Article</a>
    <time>yesterday-ish</time>
  </li>
  <li class="entry">
    <a class="headline" href="/2025/11/08/fresh">Fresh Kernel Patch</a>
  </li>
  <li class="entry"><span>no headline here</span></li>
</ul>
</body></html>`

func newListingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(listingPage))
	}))
	t.Cleanup(server.Close)
	return server
}

func listingSelectors() Selectors {
	return Selectors{
		Item:    "li.entry",
		Title:   "a.headline",
		Link:    "a.headline",
		Summary: ".teaser",
		Date:    "time",
	}
}

func TestHTMLSourceFetch(t *testing.T) {
	t.Parallel()

	server := newListingServer(t)
	fetchedAt := time.Date(2025, time.November, 9, 12, 0, 0, 0, time.UTC)

	src, err := NewHTMLSource("kernel-news", server.URL+"/news", listingSelectors(), Options{
		Client: server.Client(),
		Now:    func() time.Time { return fetchedAt },
	})
	if err != nil {
		t.Fatalf("NewHTMLSource error: %v", err)
	}

	articles, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.ID != server.URL+"/2025/11/08/fresh" {
		t.Fatalf("unexpected id: %s", first.ID)
	}
	if first.Title != "Fresh Kernel Patch" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Body != "Fixes a privilege escalation." {
		t.Fatalf("unexpected body: %q", first.Body)
	}
	if first.Source != "kernel-news" {
		t.Fatalf("unexpected source: %s", first.Source)
	}
	if !first.PublishedAt.Equal(time.Date(2025, time.November, 8, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published date: %v", first.PublishedAt)
	}

	second := articles[1]
	if second.ID != "https://other.example.org/old" {
		t.Fatalf("unexpected id: %s", second.ID)
	}
	if !second.PublishedAt.Equal(fetchedAt) {
		t.Fatalf("expected fallback to fetch time, got %v", second.PublishedAt)
	}
}

func TestHTMLSourceSkipPolicy(t *testing.T) {
	t.Parallel()

	server := newListingServer(t)
	src, err := NewHTMLSource("kernel-news", server.URL+"/news", listingSelectors(), Options{
		Client:     server.Client(),
		DatePolicy: DatePolicySkip,
	})
	if err != nil {
		t.Fatalf("NewHTMLSource error: %v", err)
	}

	articles, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Fresh Kernel Patch" {
		t.Fatalf("expected only the dated article, got %+v", articles)
	}
}

func TestHTMLSourceFetchError(t *testing.T) {
	t.Parallel()

	server := newListingServer(t)
	src, err := NewHTMLSource("kernel-news", server.URL+"/missing", listingSelectors(), Options{Client: server.Client()})
	if err != nil {
		t.Fatalf("NewHTMLSource error: %v", err)
	}

	articles, err := src.Fetch(context.Background())
	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Source != "kernel-news" {
		t.Fatalf("unexpected source on error: %s", fetchErr.Source)
	}
	if articles != nil {
		t.Fatalf("expected no articles on failure, got %d", len(articles))
	}
}

func TestNewHTMLSourceRequiresSelectors(t *testing.T) {
	t.Parallel()

	if _, err := NewHTMLSource("x", "https://example.org", Selectors{Item: "li"}, Options{}); err == nil {
		t.Fatal("expected error for missing title selector")
	}
}

func TestStripMarkupOnSelection(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	inner, err := doc.Find(".teaser").First().Html()
	if err != nil {
		t.Fatalf("inner html: %v", err)
	}
	if got := StripMarkup(inner); got != "Fixes a privilege escalation." {
		t.Fatalf("unexpected text: %q", got)
	}
}

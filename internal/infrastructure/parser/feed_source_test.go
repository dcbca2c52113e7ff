package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sysadmin</title>
  <link>https://example.org</link>
  <item>
    <guid>t3_abc123</guid>
    <title>Exchange servers hit by zero-day</title>
    <link>https://example.org/posts/abc123</link>
    <description>&lt;p&gt;Patch &lt;b&gt;now&lt;/b&gt;.&lt;/p&gt;&lt;p&gt;Details inside&lt;/p&gt;</description>
    <pubDate>Mon, 10 Mar 2025 14:30:00 GMT</pubDate>
  </item>
  <item>
    <title>Undated hardware roundup</title>
    <link>https://example.org/posts/roundup</link>
    <description>Plain summary</description>
    <pubDate>sometime last week</pubDate>
  </item>
  <item>
    <guid>untitled-1</guid>
    <title>   </title>
    <link>https://example.org/posts/untitled</link>
  </item>
</channel>
</rss>`

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFeedSourceFetch(t *testing.T) {
	t.Parallel()

	server := feedServer(t, http.StatusOK, rssFixture)
	fetchedAt := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)
	src := NewFeedSource("reddit-sysadmin", server.URL, Options{
		Client: server.Client(),
		Now:    func() time.Time { return fetchedAt },
	})

	articles, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "t3_abc123", first.ID)
	assert.Equal(t, "reddit-sysadmin", first.Source)
	assert.Equal(t, "Exchange servers hit by zero-day", first.Title)
	assert.Equal(t, "Patch now. Details inside", first.Body)
	assert.True(t, first.PublishedAt.Equal(time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, first.PublishedAt.Location())

	second := articles[1]
	assert.Equal(t, EntryID("", "Undated hardware roundup", "https://example.org/posts/roundup"), second.ID)
	assert.Len(t, second.ID, 64)
	assert.Equal(t, "Plain summary", second.Body)
	assert.True(t, second.PublishedAt.Equal(fetchedAt), "unparsable date falls back to fetch time")

	for _, a := range articles {
		require.NoError(t, a.Validate())
	}
}

func TestFeedSourceSkipPolicyDropsUndated(t *testing.T) {
	t.Parallel()

	server := feedServer(t, http.StatusOK, rssFixture)
	src := NewFeedSource("reddit-sysadmin", server.URL, Options{
		Client:     server.Client(),
		DatePolicy: DatePolicySkip,
	})

	articles, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "t3_abc123", articles[0].ID)
}

func TestFeedSourceEmptyFeed(t *testing.T) {
	t.Parallel()

	server := feedServer(t, http.StatusOK, `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`)
	src := NewFeedSource("empty", server.URL, Options{Client: server.Client()})

	articles, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestFeedSourceFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "upstream error", status: http.StatusBadGateway, body: "bad gateway"},
		{name: "malformed feed", status: http.StatusOK, body: "this is not xml at all {"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := feedServer(t, tt.status, tt.body)
			src := NewFeedSource("ars-technica", server.URL, Options{Client: server.Client()})

			articles, err := src.Fetch(context.Background())
			var fetchErr *domain.FetchError
			require.True(t, errors.As(err, &fetchErr), "got %v", err)
			assert.Equal(t, "ars-technica", fetchErr.Source)
			assert.Nil(t, articles)
		})
	}
}

func TestFeedSourceContextTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	src := NewFeedSource("slow", server.URL, Options{Client: server.Client()})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeedSourceDescriptor(t *testing.T) {
	t.Parallel()

	src := NewFeedSource("toms-hardware", "https://www.tomshardware.com/feeds/all", Options{})
	assert.Equal(t, domain.SourceDescriptor{
		Name:    "toms-hardware",
		FeedURL: "https://www.tomshardware.com/feeds/all",
		Kind:    domain.SourceKindRSS,
	}, src.Descriptor())
}

package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "NewsScanner/1.0"

// DatePolicy decides what happens to entries without a usable publish date.
type DatePolicy string

const (
	// DatePolicyNow stamps such entries with the fetch time so they still get scored.
	DatePolicyNow DatePolicy = "now"
	// DatePolicySkip drops such entries from the fetched window.
	DatePolicySkip DatePolicy = "skip"
)

// ParseDatePolicy maps a config value to a policy, defaulting to DatePolicyNow.
func ParseDatePolicy(value string) (DatePolicy, error) {
	switch DatePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", DatePolicyNow:
		return DatePolicyNow, nil
	case DatePolicySkip:
		return DatePolicySkip, nil
	default:
		return "", fmt.Errorf("unknown date policy %q", value)
	}
}

// resolveDate picks the first known date. ok is false when the policy drops the entry.
func resolveDate(policy DatePolicy, now time.Time, candidates ...*time.Time) (time.Time, bool) {
	for _, c := range candidates {
		if c != nil && !c.IsZero() {
			return c.UTC(), true
		}
	}
	if policy == DatePolicySkip {
		return time.Time{}, false
	}
	return now.UTC(), true
}

// EntryID returns the feed-provided id, or a stable hash of title and link.
func EntryID(guid, title, link string) string {
	if id := strings.TrimSpace(guid); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(title) + "\n" + strings.TrimSpace(link)))
	return hex.EncodeToString(sum[:])
}

// StripMarkup reduces an HTML fragment to whitespace-normalized plain text.
func StripMarkup(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4, h5, h6").AfterHtml(" ")

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func fetchBody(ctx context.Context, client *http.Client, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}

	return resp.Body, nil
}

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: 20 * time.Second}
	}
	return client
}

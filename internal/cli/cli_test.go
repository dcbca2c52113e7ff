package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
)

const feed = `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><guid>1</guid><title>Major cloud outage takes down email</title><pubDate>%s</pubDate></item>
<item><guid>2</guid><title>Office chairs compared</title><pubDate>%s</pubDate></item>
</channel></rss>`

func setup(t *testing.T) {
	t.Helper()
	pub := time.Now().UTC().Format(time.RFC1123Z)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, feed, pub, pub)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf("database:\n  dsn: %s\nsources:\n  - name: local\n    url: %s\n", filepath.Join(dir, "news.db"), srv.URL)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	t.Setenv("NEWS_SCANNER_CONFIG", path)
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out := new(bytes.Buffer)
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestFetchThenList(t *testing.T) {
	setup(t)

	out := execute(t, "fetch")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "fetched=2 stored=2")

	var filtered []map[string]any
	require.NoError(t, json.Unmarshal([]byte(execute(t, "list")), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "Major cloud outage takes down email", filtered[0]["title"])
	assert.NotContains(t, filtered[0], "final_score")

	var all []map[string]any
	require.NoError(t, json.Unmarshal([]byte(execute(t, "list", "--all")), &all))
	assert.Len(t, all, 2)
	assert.Contains(t, all[0], "final_score")
}

func TestListEmptyStore(t *testing.T) {
	setup(t)
	assert.JSONEq(t, "[]", execute(t, "list"))
}

func TestCommandTree(t *testing.T) {
	root := NewRootCommand()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "fetch", "list"})
}

func TestFetchSingleSource(t *testing.T) {
	setup(t)

	out := execute(t, "fetch", "local")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "fetched=2 stored=2")
	assert.NotContains(t, out, "cycle")

	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"fetch", "nowhere"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

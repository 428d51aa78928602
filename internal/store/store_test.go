package store_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webcrawler/internal/page"
	"github.com/jonesrussell/webcrawler/internal/store"
)

func TestStore_LoadCrawledURLs_MissingFileReturnsEmpty(t *testing.T) {
	s := store.New(t.TempDir())
	urls, err := s.LoadCrawledURLs()
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestStore_LoadCrawlQueue_FallsBackToSeed(t *testing.T) {
	s := store.New(t.TempDir())
	urls, err := s.LoadCrawlQueue([]string{"https://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/"}, urls)
}

func TestStore_PersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir)

	require.NoError(t, s.PersistCrawledURLs([]string{"example.com/a", "example.com/b"}))

	loaded, err := s.LoadCrawledURLs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"example.com/a", "example.com/b"}, loaded)
}

func TestStore_PersistCrawledURLsOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir)

	require.NoError(t, s.PersistCrawledURLs([]string{"a", "b"}))
	require.NoError(t, s.PersistCrawledURLs([]string{"c"}))

	loaded, err := s.LoadCrawledURLs()
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, loaded)
}

func TestStore_AppendPagesIsAppendOnly(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir)

	rec1, err := page.New(page.Fields{
		OriginalURL: "https://example.com/a", OriginalCanonicalURL: "example.com/a",
		FinalURL: "https://example.com/a", FinalCanonicalURL: "example.com/a",
		Title: "A", ContentSnippet: "a", ContentSnippetQuality: 1,
	}, page.DefaultLimits())
	require.NoError(t, err)

	rec2, err := page.New(page.Fields{
		OriginalURL: "https://example.com/b", OriginalCanonicalURL: "example.com/b",
		FinalURL: "https://example.com/b", FinalCanonicalURL: "example.com/b",
		Title: "B", ContentSnippet: "b", ContentSnippetQuality: 1,
	}, page.DefaultLimits())
	require.NoError(t, err)

	require.NoError(t, s.AppendPages([]*page.Record{rec1}))
	require.NoError(t, s.AppendPages([]*page.Record{rec2}))

	raw, err := os.ReadFile(filepath.Join(dir, "web_index.csv"))
	require.NoError(t, err)

	var decoded map[string]any
	lines := splitLines(string(raw))
	require.Len(t, lines, 2)
	require.NoError(t, json.Unmarshal([]byte(unquoteCSVField(lines[1])), &decoded))
	assert.Equal(t, "B", decoded["title"])
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// unquoteCSVField strips the CSV quoting the encoding/csv writer applies
// because the JSON payload contains commas and quotes.
func unquoteCSVField(line string) string {
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		inner := line[1 : len(line)-1]
		result := make([]byte, 0, len(inner))
		for i := 0; i < len(inner); i++ {
			if inner[i] == '"' && i+1 < len(inner) && inner[i+1] == '"' {
				result = append(result, '"')
				i++
				continue
			}
			result = append(result, inner[i])
		}
		return string(result)
	}
	return line
}

package feed

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(WithClock(func() time.Time { return fixedNow }))
}

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example</title>
  <link href="https://example.com/"/>
  <entry>
    <title>First</title>
    <link rel="edit" href="https://example.com/edit/1"/>
    <link rel="alternate" href="https://example.com/posts/1?utm_source=rss#top"/>
    <id>urn:1</id>
    <published>2024-01-02T03:04:05Z</published>
    <content type="html">&lt;p&gt;Hello &amp;amp; welcome&lt;/p&gt;</content>
  </entry>
  <entry>
    <title>Relative</title>
    <link href="/posts/2"/>
    <id>urn:2</id>
    <summary>Only summary</summary>
  </entry>
  <entry>
    <link href="https://example.com/posts/3"/>
    <id>urn:3</id>
  </entry>
</feed>`

func TestParse_Atom(t *testing.T) {
	doc, err := newTestParser().Parse([]byte(atomDoc))
	require.NoError(t, err)

	assert.Equal(t, DialectAtom, doc.Dialect)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, 1, doc.Skipped)

	first := doc.Entries[0]
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "https://example.com/posts/1", first.Link)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), first.CreatedAt)
	assert.Contains(t, first.Content, "<p>")
	assert.Equal(t, "Hello & welcome", first.Summary)

	second := doc.Entries[1]
	assert.Equal(t, "https://example.com/posts/2", second.Link)
	assert.Equal(t, "Only summary", second.Content)
	assert.Equal(t, fixedNow, second.CreatedAt)
}

func rssDoc(items ...string) string {
	return `<?xml version="1.0"?>
<rss version="2.0"><channel><title>News</title><link>https://news.example.com</link>` +
		strings.Join(items, "") + `</channel></rss>`
}

func rssItem(i int, title string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>https://news.example.com/%d</link>`+
		`<description>story %d</description><pubDate>Tue, 02 Jan 2024 03:04:05 GMT</pubDate></item>`, title, i, i)
}

func TestParse_RSS_SkipsEntryWithoutTitle(t *testing.T) {
	raw := rssDoc(
		rssItem(1, "one"),
		rssItem(2, "two"),
		rssItem(3, ""),
		rssItem(4, "four"),
		rssItem(5, "five"),
	)

	doc, err := newTestParser().Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, DialectRSS, doc.Dialect)
	assert.Len(t, doc.Entries, 4)
	assert.Equal(t, 1, doc.Skipped)
	for _, e := range doc.Entries {
		assert.NotEqual(t, "https://news.example.com/3", e.Link)
	}
}

func TestParse_RSS_FallbacksAndEnclosure(t *testing.T) {
	raw := rssDoc(`<item><title>Episode</title><link>https://pod.example.com/ep1</link>` +
		`<description>show notes</description>` +
		`<enclosure url="https://pod.example.com/ep1.mp3" length="1" type="audio/mpeg"/></item>` +
		`<item><title>No link</title></item>`)

	doc, err := newTestParser().Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, doc.Entries, 1)

	e := doc.Entries[0]
	assert.Equal(t, "show notes", e.Content)
	assert.True(t, e.HasAudio)
	assert.False(t, e.HasVideo)
	assert.Equal(t, fixedNow, e.CreatedAt)
}

const jsonDoc = `{
  "version": "https://jsonfeed.org/version/1.1",
  "title": "Alice",
  "description": "Alice's planet",
  "icon": "https://example.com/icon.png",
  "items": [
    {"id": "1", "url": "https://example.com/1", "title": "One",
     "content_html": "<p>one</p><video src=\"a.mp4\"></video>",
     "date_published": "2024-01-01T00:00:00Z"},
    {"id": "2", "url": "https://example.com/2", "content_text": "no title"},
    {"id": "3", "url": "https://example.com/3", "title": "Three", "content_text": "plain"}
  ]
}`

func TestParse_JSONFeed(t *testing.T) {
	doc, err := newTestParser().Parse([]byte(jsonDoc))
	require.NoError(t, err)

	assert.Equal(t, DialectJSON, doc.Dialect)
	assert.Equal(t, "Alice", doc.Title)
	assert.Equal(t, "Alice's planet", doc.Description)
	assert.Equal(t, "https://example.com/icon.png", doc.IconURL)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, 1, doc.Skipped)

	one := doc.Entries[0]
	assert.True(t, one.HasVideo)
	assert.Contains(t, one.Content, "<video")
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), one.CreatedAt)

	three := doc.Entries[1]
	assert.Equal(t, "plain", three.Content)
	assert.Equal(t, fixedNow, three.CreatedAt)
}

func TestParse_WholeDocumentFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: "   "},
		{name: "not a feed", raw: "hello world"},
		{name: "broken json", raw: `{"title": "x", "items": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newTestParser().Parse([]byte(tt.raw))
			assert.Nil(t, doc)
			require.Error(t, err)
			assert.True(t, apperr.IsParseFailure(err))
		})
	}
}

func TestNormalizeAtomLink(t *testing.T) {
	tests := []struct {
		href, base, want string
	}{
		{"https://a.example.com/x/y?q=1#f", "", "https://a.example.com/x/y"},
		{"/rel", "https://b.example.com/feed", "https://b.example.com/rel"},
		{"/rel", "", ""},
		{"", "https://b.example.com", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeAtomLink(tt.href, tt.base), tt.href)
	}
}

func TestContentInspector_Summary(t *testing.T) {
	ci := newContentInspector()

	summary, video, audio := ci.inspect(`<p>Watch <iframe src="https://www.youtube.com/embed/x"></iframe> and <audio src="a.mp3"></audio></p>`)
	assert.Equal(t, "Watch and", summary)
	assert.True(t, video)
	assert.True(t, audio)

	long := strings.Repeat("word ", 100)
	summary, _, _ = ci.inspect(long)
	assert.True(t, strings.HasSuffix(summary, "…"))
}

package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbridge/feedbridge/pkg/config"
)

// serveFeed starts a test server returning the given document and a fetcher
// resolving "news.example.com" to it.
func serveFeed(t *testing.T, contentType, body string) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	resolver := NewConfigResolver(map[string]config.Source{
		"news.example.com": {URL: srv.URL, Title: "News"},
	})
	return NewFetcher(resolver, 5*time.Second, "feedbridge-test/1.0")
}

func TestFetcher_PlainDescription(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>c</title>
<item>
  <title>First</title>
  <link>https://news.example.com/1</link>
  <guid>guid-1</guid>
  <pubDate>Mon, 06 Jan 2025 10:00:00 GMT</pubDate>
  <description>hello world</description>
</item>
</channel></rss>`

	f := serveFeed(t, "application/rss+xml", doc)
	items, err := f.Fetch(context.Background(), "news.example.com")
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "First", items[0].Title)
	assert.Equal(t, "hello world", items[0].Description)
	assert.Equal(t, "https://news.example.com/1", items[0].Link)
	assert.Equal(t, "guid-1", items[0].GUID)
	assert.Equal(t, "Mon, 06 Jan 2025 10:00:00 GMT", items[0].PubDate)
}

func TestFetcher_RichContentPreferred(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel><title>c</title>
<item>
  <title>Rich</title>
  <description>plain text</description>
  <content:encoded><![CDATA[<b>rich</b> body]]></content:encoded>
</item>
</channel></rss>`

	f := serveFeed(t, "application/rss+xml", doc)
	items, err := f.Fetch(context.Background(), "news.example.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "<b>rich</b> body", items[0].Description)
}

func TestFetcher_MediaGroupDescriptionWins(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel><title>c</title>
<item>
  <title>Video</title>
  <description>ignored</description>
  <media:group>
    <media:description>line one
line two</media:description>
  </media:group>
</item>
</channel></rss>`

	f := serveFeed(t, "application/rss+xml", doc)
	items, err := f.Fetch(context.Background(), "news.example.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "line one<br>line two", items[0].Description)
}

func TestFetcher_NewlinesBecomeBreaks(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>c</title>
<item><title>T</title><description>a
b
c</description></item>
</channel></rss>`

	f := serveFeed(t, "application/rss+xml", doc)
	items, err := f.Fetch(context.Background(), "news.example.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a<br>b<br>c", items[0].Description)
}

func TestFetcher_DropsEmptyItems(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>c</title>
<item><link>https://news.example.com/empty</link></item>
<item><title>Kept</title></item>
</channel></rss>`

	f := serveFeed(t, "application/rss+xml", doc)
	items, err := f.Fetch(context.Background(), "news.example.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)
}

func TestFetcher_Windows1251(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"windows-1251\"?>" +
		"<rss version=\"2.0\"><channel><title>c</title>" +
		"<item><title>\xCF\xF0\xE8\xE2\xE5\xF2</title><link>https://news.example.com/1</link></item>" +
		"</channel></rss>"

	f := serveFeed(t, "application/rss+xml; charset=windows-1251", doc)
	items, err := f.Fetch(context.Background(), "news.example.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Привет", items[0].Title)
}

func TestFetcher_UnknownSource(t *testing.T) {
	resolver := NewConfigResolver(map[string]config.Source{})
	f := NewFetcher(resolver, time.Second, "feedbridge-test/1.0")

	items, err := f.Fetch(context.Background(), "nobody.example.com")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	resolver := NewConfigResolver(map[string]config.Source{"news.example.com": {URL: srv.URL}})
	f := NewFetcher(resolver, time.Second, "feedbridge-test/1.0")

	items, err := f.Fetch(context.Background(), "news.example.com")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetcher_MalformedFeed(t *testing.T) {
	f := serveFeed(t, "text/xml", "this is not a feed")
	_, err := f.Fetch(context.Background(), "news.example.com")
	assert.Error(t, err)
}

func TestConfigResolver(t *testing.T) {
	resolver := NewConfigResolver(map[string]config.Source{
		"News.Example.COM": {URL: "https://news.example.com/rss"},
	})

	t.Run("case insensitive match", func(t *testing.T) {
		info, err := resolver.Resolve(context.Background(), "news.example.com")
		require.NoError(t, err)
		assert.Equal(t, "https://news.example.com/rss", info.URL)
		assert.Equal(t, "news.example.com", info.Title) // defaults to hostname
	})

	t.Run("miss", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), "other.example.com")
		assert.ErrorIs(t, err, ErrSourceUnknown)
	})
}

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"

	"github.com/feedbridge/feedbridge/pkg/charset"
	"github.com/feedbridge/feedbridge/pkg/domain"
)

// maxFeedSize caps how much of a feed document is read, malformed or hostile
// servers should not be able to exhaust memory
const maxFeedSize = 10 * 1024 * 1024

// Fetcher retrieves a source's feed and normalizes it into canonical items.
type Fetcher struct {
	resolver  Resolver
	client    *http.Client
	userAgent string
}

// NewFetcher creates a feed fetcher with the given resolver and HTTP settings
func NewFetcher(resolver Resolver, timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		resolver: resolver,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch resolves the source's feed URL, retrieves the document and returns
// normalized items in feed document order (newest first by feed convention).
// Unknown sources and non-success responses yield an empty list, not an
// error; parse failures propagate so the orchestrator can isolate them.
func (f *Fetcher) Fetch(ctx context.Context, hostname string) ([]domain.Item, error) {
	info, err := f.resolver.Resolve(ctx, hostname)
	if errors.Is(err, ErrSourceUnknown) {
		lgr.Printf("[DEBUG] no feed resolved for %s, skipping", hostname)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve source %s: %w", hostname, err)
	}

	doc, err := f.retrieve(ctx, info.URL)
	if err != nil {
		return nil, err
	}
	if doc == "" {
		return nil, nil
	}

	parsed, err := gofeed.NewParser().ParseString(doc)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", info.URL, err)
	}

	items := make([]domain.Item, 0, len(parsed.Items))
	for _, raw := range parsed.Items {
		item, err := domain.NewItem(raw.Title, itemDescription(raw), raw.Link, raw.Published, raw.GUID)
		if err != nil {
			// entry with no text content at all, nothing to notify about
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// retrieve fetches the raw feed document and decodes it to a UTF-8 string.
// A non-success status returns an empty document, next cycle will retry.
func (f *Fetcher) retrieve(ctx context.Context, feedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		lgr.Printf("[WARN] feed %s returned status %d", feedURL, resp.StatusCode)
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return "", fmt.Errorf("read feed %s: %w", feedURL, err)
	}

	return decodeBody(body, resp.Header.Get("Content-Type")), nil
}

// encodingAttrRe matches the encoding attribute of an XML prolog
var encodingAttrRe = regexp.MustCompile(`(?i)(<\?xml[^>]*encoding=)["'][^"']*["']`)

// decodeBody converts the raw document to UTF-8. When the response declares a
// legacy single-byte charset we handle, the document is decoded here and its
// XML prolog rewritten so the feed parser does not decode it a second time.
// Everything else is passed through as UTF-8.
func decodeBody(body []byte, contentType string) string {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if dec, ok := charset.Lookup(params["charset"]); ok {
				decoded, _ := dec.Decode(body, charset.ModeReplacement)
				return encodingAttrRe.ReplaceAllString(decoded, `${1}"UTF-8"`)
			}
		}
	}
	return string(body)
}

// itemDescription picks the entry's description, first match wins: grouped
// media description, rich/encoded content, plain description. The two content
// fallbacks of the wire format (content:encoded and generic content) arrive
// in one field after parsing, so they collapse into a single branch here.
func itemDescription(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, group := range media["group"] {
			descs := group.Children["description"]
			if len(descs) == 0 {
				continue
			}
			var sb strings.Builder
			for _, d := range descs {
				sb.WriteString(d.Value)
			}
			if text := normalizeText(sb.String()); text != "" {
				return text
			}
		}
	}
	if item.Content != "" {
		return normalizeText(item.Content)
	}
	return normalizeText(item.Description)
}

// normalizeText trims the value and converts newlines to HTML line breaks
func normalizeText(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "<br>")
}

package activity

import (
	"fmt"
	stdhtml "html"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/feedbridge/feedbridge/pkg/domain"
)

// imgTagRe matches embedded image tags in feed descriptions
var imgTagRe = regexp.MustCompile(`(?i)<img[^>]*>`)

// Composer builds notification activities for new feed items. Composition is
// total: malformed description markup degrades to an empty attachment list
// and pass-through text, it never fails a cycle.
type Composer struct {
	origin   string
	sanitize *bluemonday.Policy
	now      func() time.Time
	newID    func() string
}

// NewComposer creates a composer for the given serving origin hostname
func NewComposer(origin string) *Composer {
	return &Composer{
		origin:   origin,
		sanitize: bluemonday.UGCPolicy(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// ActorURI returns the deterministic actor identity for a source hostname.
func (c *Composer) ActorURI(hostname string) string {
	return fmt.Sprintf("https://%s/%s", c.origin, url.PathEscape(hostname))
}

// Compose turns a canonical item into a public Create/Note activity
// attributed to the source's actor.
func (c *Composer) Compose(hostname string, item domain.Item) Activity {
	actor := c.ActorURI(hostname)
	now := c.now().UTC().Format(time.RFC3339)

	published := item.PubDate
	if published == "" {
		published = now
	}

	return Activity{
		AtContext: Context,
		ID:        fmt.Sprintf("https://%s/%s", c.origin, c.newID()),
		Type:      "Create",
		Actor:     actor,
		Published: now,
		Object: Note{
			ID:           fmt.Sprintf("https://%s/%s", c.origin, c.newID()),
			Type:         "Note",
			Published:    published,
			AttributedTo: actor,
			Content:      c.noteBody(item),
			Sensitive:    false,
			CC:           PublicAudience,
			Attachment:   extractImages(item.Description),
		},
	}
}

// noteBody renders the HTML body: heading, description with images stripped,
// and the item link. Absent parts are omitted; present parts join with
// newlines.
func (c *Composer) noteBody(item domain.Item) string {
	parts := make([]string, 0, 3)

	if item.Title != "" {
		parts = append(parts, "<h1>"+stdhtml.EscapeString(item.Title)+"</h1>")
	}

	// images travel as attachments, not inline
	stripped := strings.TrimSpace(imgTagRe.ReplaceAllString(item.Description, ""))
	if stripped != "" {
		parts = append(parts, "<p>"+c.sanitize.Sanitize(stripped)+"</p>")
	}

	if item.Link != "" {
		parts = append(parts, fmt.Sprintf(`<a href="%s">%s</a>`, item.Link, stdhtml.EscapeString(item.Link)))
	}

	return strings.Join(parts, "\n")
}

// extractImages collects every <img> in the raw description, in document
// order, as attachments. Tags without a src are discarded. Unparseable markup
// yields whatever was recognized before the error, possibly nothing.
func extractImages(description string) []Attachment {
	attachments := []Attachment{}

	tz := html.NewTokenizer(strings.NewReader(description))
	for {
		tt := tz.Next()
		if tt == html.ErrorToken {
			return attachments
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tok := tz.Token()
		if tok.Data != "img" {
			continue
		}

		var src, alt, title string
		for _, attr := range tok.Attr {
			switch attr.Key {
			case "src":
				src = attr.Val
			case "alt":
				alt = attr.Val
			case "title":
				title = attr.Val
			}
		}
		if src == "" {
			continue
		}

		name := alt
		if name == "" {
			name = title
		}

		attachments = append(attachments, Attachment{
			Type:      "Image",
			MediaType: "image/" + imageSubtype(src),
			URL:       src,
			Name:      name,
		})
	}
}

// imageSubtype infers the MIME subtype from the URL's file extension,
// normalizing jpg to jpeg and defaulting to jpeg when there is none.
func imageSubtype(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" {
		return "jpeg"
	}
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}
